// Command nutribot talks to the assistant from a terminal, either through
// the interactive widget or one question at a time.
package main

func main() {
	Execute()
}
