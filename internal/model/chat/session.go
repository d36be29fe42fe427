package chat

import "time"

// Session captures an anonymous learner bound to a tutor.
type Session struct {
	ID        string    `json:"id" msgpack:"id"`
	TutorID   string    `json:"tutorId" msgpack:"tutorId"`
	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
}
