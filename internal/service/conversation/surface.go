package conversation

import "github.com/nutrigraph/nutribot/backend/internal/model/chat"

// Surface is a UI collaborator. Calls arrive in transcript order from the
// submitting goroutine and must not block for long.
type Surface interface {
	AppendMessage(msg chat.Message)
	SetPending(pending bool)
}

// SurfaceFuncs adapts plain functions to Surface. Nil fields are skipped.
type SurfaceFuncs struct {
	OnMessage func(msg chat.Message)
	OnPending func(pending bool)
}

func (f SurfaceFuncs) AppendMessage(msg chat.Message) {
	if f.OnMessage != nil {
		f.OnMessage(msg)
	}
}

func (f SurfaceFuncs) SetPending(pending bool) {
	if f.OnPending != nil {
		f.OnPending(pending)
	}
}
