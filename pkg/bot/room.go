package bot

import "context"

// JoinStatus is the outcome of a join attempt.
type JoinStatus string

const (
	// JoinAdmitted means the room let the bot in immediately.
	JoinAdmitted JoinStatus = "admitted"
	// JoinWaiting means the bot landed in a waiting room.
	JoinWaiting JoinStatus = "waiting"
	// JoinRejected means the host or platform refused the bot.
	JoinRejected JoinStatus = "rejected"
)

// JoinResult is the result of RoomClient.Join.
type JoinResult struct {
	Status JoinStatus
}

// RoomClient is the browser-automation collaborator that physically sits in a
// meeting room. The lifecycle machine observes it cooperatively; it never
// pushes events. The client joins with camera off and microphone muted for
// the whole session.
type RoomClient interface {
	// Join navigates to the meeting and attempts entry.
	Join(ctx context.Context, url string) (JoinResult, error)

	// ObserveAdmitted reports whether a waiting-room session has been let in.
	ObserveAdmitted(ctx context.Context) (bool, error)

	// ObserveParticipantCount returns the number of participants other than
	// the bot currently in the room.
	ObserveParticipantCount(ctx context.Context) (int, error)

	// ObserveCallEnded reports whether the room UI signals the call is over.
	ObserveCallEnded(ctx context.Context) (bool, error)

	// Leave departs the meeting. Safe to call from any room state.
	Leave(ctx context.Context) error
}
