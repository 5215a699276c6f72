package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorRef lets request types carry a reply target without exposing the
// actor package to callers that only build messages.
type ActorRef actor.PID

// ActorRequestMixIn is embedded by charger requests. A nil ReplyToRef means
// the response goes to the sender, or nowhere for fire-and-forget sends.
type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

// ActorRequest is any message the charger actor answers.
type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

// ActorResponseMixIn carries the failure of a run or check alongside its
// partial result.
type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

// ActorResponse is checked by the scheduler and HTTP handlers to tell a
// failed cycle from a delivered one.
type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}
