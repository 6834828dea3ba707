package booking

import (
	"fmt"

	"github.com/iliyamo/spacebook/internal/model"
	"github.com/iliyamo/spacebook/internal/queue"
)

// CommentEvent describes a comment posted on the discussion board.  The
// board service owns the data; the core only derives who must hear about it.
type CommentEvent struct {
	CommentID uint64
	AuthorID  uint64
	PostID    uint64
	// PostHostID is the host who authored the post.
	PostHostID uint64
	// ParentAuthorID is set when the comment answers another comment.
	ParentAuthorID *uint64
	// GuestParticipantID is the guest who opened the thread, if any.
	GuestParticipantID *uint64
	IsReply            bool
	Excerpt            string
}

// CommentEventFromQueue converts a broker message into a CommentEvent.
func CommentEventFromQueue(ev queue.CommentPostedEvent) CommentEvent {
	return CommentEvent{
		CommentID:          ev.CommentID,
		AuthorID:           ev.AuthorID,
		PostID:             ev.PostID,
		PostHostID:         ev.PostHostID,
		ParentAuthorID:     ev.ParentAuthorID,
		GuestParticipantID: ev.GuestParticipantID,
		IsReply:            ev.IsReply(),
		Excerpt:            ev.Excerpt,
	}
}

type commentRecipient struct {
	receiverID uint64
	content    string
	typ        model.NotificationType
}

// commentRecipients applies the three comment rules independently.  The
// author never receives a notification about their own comment.
func commentRecipients(ev CommentEvent) []commentRecipient {
	var out []commentRecipient
	excerpt := ev.Excerpt
	if r := []rune(excerpt); len(r) > 80 {
		excerpt = string(r[:77]) + "..."
	}

	if ev.ParentAuthorID != nil && *ev.ParentAuthorID != ev.AuthorID {
		out = append(out, commentRecipient{
			receiverID: *ev.ParentAuthorID,
			content:    fmt.Sprintf("Someone replied to your comment: %s", excerpt),
			typ:        model.NotifCommentReply,
		})
	}
	if ev.PostHostID != 0 && ev.PostHostID != ev.AuthorID {
		out = append(out, commentRecipient{
			receiverID: ev.PostHostID,
			content:    fmt.Sprintf("New comment on your post #%d: %s", ev.PostID, excerpt),
			typ:        model.NotifCommentOnPost,
		})
	}
	if ev.IsReply && ev.GuestParticipantID != nil && *ev.GuestParticipantID != ev.AuthorID {
		out = append(out, commentRecipient{
			receiverID: *ev.GuestParticipantID,
			content:    fmt.Sprintf("New reply in a thread you joined on post #%d: %s", ev.PostID, excerpt),
			typ:        model.NotifCommentReply,
		})
	}
	return out
}
