package core

import (
	"fmt"
	"strconv"
)

// TaskID identifies a task registered with a Scheduler.
// IDs are assigned in ascending order starting at 1; the zero value is invalid.
type TaskID uint64

// IsZero reports whether the id was never assigned.
func (id TaskID) IsZero() bool { return id == 0 }

func (id TaskID) String() string { return "task-" + strconv.FormatUint(uint64(id), 10) }

// SenderChannelID is the index of an output slot on a task.
type SenderChannelID int

// ReceiverChannelID is the index of an input slot on a task.
type ReceiverChannelID int

// ChannelID identifies one connected channel by the slots it joins.
type ChannelID struct {
	SenderID   SenderChannelID
	ReceiverID ReceiverChannelID
}

func (c ChannelID) String() string {
	return fmt.Sprintf("out#%d->in#%d", c.SenderID, c.ReceiverID)
}

// SenderName is the name of the task owning the sending side of a channel.
type SenderName string

// ReceiverName is the name of the task owning the receiving side of a channel.
type ReceiverName string

// ChannelPosition counts messages produced (sender side) or consumed
// (receiver side) on one endpoint. It never decreases.
type ChannelPosition uint64

// InclusiveRange is a range of channel positions, both ends included.
type InclusiveRange struct {
	From ChannelPosition
	To   ChannelPosition
}

// Len returns the number of positions covered by the range.
func (r InclusiveRange) Len() uint64 {
	if r.To < r.From {
		return 0
	}
	return uint64(r.To-r.From) + 1
}
