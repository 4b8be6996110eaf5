package core

import "fmt"

// Connectable is implemented by tasks with a single input.
type Connectable[In any] interface {
	Input() *Endpoint[In]
}

// ConnectableN is implemented by tasks with an indexed set of inputs.
type ConnectableN[In any] interface {
	InputN(ch ReceiverChannelID) (*Endpoint[In], error)
}

// ConnectableY is implemented by tasks with two distinctly typed inputs.
type ConnectableY[A, B any] interface {
	InputA() *Endpoint[A]
	InputB() *Endpoint[B]
}

// ConnectTo connects out to the single input of task.
func ConnectTo[T any](out *Endpoint[T], task Connectable[T]) error {
	return Connect(out, task.Input())
}

// ConnectToN connects out to input ch of task.
func ConnectToN[T any](out *Endpoint[T], task ConnectableN[T], ch ReceiverChannelID) error {
	in, err := task.InputN(ch)
	if err != nil {
		return err
	}
	return Connect(out, in)
}

// ConnectToA connects out to the first input of a two-input task.
func ConnectToA[A, B any](out *Endpoint[A], task ConnectableY[A, B]) error {
	return Connect(out, task.InputA())
}

// ConnectToB connects out to the second input of a two-input task.
func ConnectToB[A, B any](out *Endpoint[B], task ConnectableY[A, B]) error {
	return Connect(out, task.InputB())
}

// =============================================================================
// Identity and position helpers shared by the topology wrappers
// =============================================================================

func endpointInputID[T any](ep *Endpoint[T]) (ChannelID, SenderName, bool) {
	if ep == nil {
		return ChannelID{}, "", false
	}
	id, ok := ep.ChannelID()
	if !ok {
		return ChannelID{}, "", false
	}
	peer, ok := ep.PeerSender()
	if !ok {
		return ChannelID{}, "", false
	}
	return id, peer, true
}

func endpointSeqno[T any](ep *Endpoint[T]) ChannelPosition {
	if ep == nil {
		return 0
	}
	return ep.Seqno()
}

func endpointAvailable[T any](ep *Endpoint[T]) ChannelPosition {
	if ep == nil {
		return 0
	}
	return ep.AvailablePos()
}

// single returns ep for slot 0 and nil for any other slot.
func single[T any](ep *Endpoint[T], ch ReceiverChannelID) *Endpoint[T] {
	if ch != 0 {
		return nil
	}
	return ep
}

// at returns eps[ch], or nil when ch is out of range.
func at[T any](eps []*Endpoint[T], ch ReceiverChannelID) *Endpoint[T] {
	if ch < 0 || int(ch) >= len(eps) {
		return nil
	}
	return eps[ch]
}

func senderPos[T any](tx *Sender[Message[T]]) ChannelPosition {
	if tx == nil {
		return 0
	}
	return ChannelPosition(tx.Seqno())
}

func senderAt[T any](txs []*Sender[Message[T]], ch SenderChannelID) *Sender[Message[T]] {
	if ch < 0 || int(ch) >= len(txs) {
		return nil
	}
	return txs[ch]
}

func newOutputs[T any](name string, capacity, n int) ([]*Sender[Message[T]], []*Endpoint[T]) {
	txs := make([]*Sender[Message[T]], n)
	eps := make([]*Endpoint[T], n)
	for i := range n {
		tx, rx := NewChannel[Message[T]](capacity)
		txs[i] = tx
		eps[i] = newSenderEndpoint(SenderChannelID(i), rx, name)
	}
	return txs, eps
}

func newInputs[T any](name string, n int) []*Endpoint[T] {
	eps := make([]*Endpoint[T], n)
	for i := range n {
		eps[i] = newReceiverEndpoint[T](ReceiverChannelID(i), name)
	}
	return eps
}

func inputOutOfRange(name string, ch ReceiverChannelID, n int) error {
	return fmt.Errorf("task %q has no input %d (inputs: %d): %w", name, ch, n, ErrNonExistent)
}
