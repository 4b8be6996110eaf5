package core

import (
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
)

// EndpointState is the connection state of one channel endpoint.
type EndpointState uint8

const (
	// ReceiverNotConnected is an input slot waiting for an upstream sender.
	ReceiverNotConnected EndpointState = iota
	// ConnectedReceiver is an input slot owning the receiving half of a channel.
	ConnectedReceiver
	// SenderNotConnected is an output slot holding its channel's receiving
	// half until it is paired with a downstream input.
	SenderNotConnected
	// ConnectedSender is an output slot whose receiving half was handed over.
	ConnectedSender
)

func (s EndpointState) String() string {
	switch s {
	case ReceiverNotConnected:
		return "ReceiverNotConnected"
	case ConnectedReceiver:
		return "ConnectedReceiver"
	case SenderNotConnected:
		return "SenderNotConnected"
	case ConnectedSender:
		return "ConnectedSender"
	default:
		return "Unknown"
	}
}

// endpointState is implemented only by the four state structs below.
type endpointState[T any] interface {
	kind() EndpointState
}

type receiverNotConnected struct {
	id   ReceiverChannelID
	name ReceiverName
}

type connectedReceiver[T any] struct {
	channelID ChannelID
	rx        *Receiver[Message[T]]
	peer      SenderName
}

type senderNotConnected[T any] struct {
	id   SenderChannelID
	rx   *Receiver[Message[T]]
	name SenderName
}

type connectedSender struct {
	channelID ChannelID
	peer      ReceiverName
}

func (receiverNotConnected) kind() EndpointState  { return ReceiverNotConnected }
func (connectedReceiver[T]) kind() EndpointState  { return ConnectedReceiver }
func (senderNotConnected[T]) kind() EndpointState { return SenderNotConnected }
func (connectedSender) kind() EndpointState       { return ConnectedSender }

type stateBox[T any] struct {
	s endpointState[T]
}

// Endpoint is one half of a pipeline channel moving through its connection
// lifecycle. Transitions happen only in Connect and at most once; every state
// is published as a whole, so readers never see a partially updated endpoint.
type Endpoint[T any] struct {
	mu    sync.Mutex // held by Connect
	state atomic.Pointer[stateBox[T]]
}

func newEndpoint[T any](s endpointState[T]) *Endpoint[T] {
	ep := &Endpoint[T]{}
	ep.state.Store(&stateBox[T]{s: s})
	return ep
}

func newReceiverEndpoint[T any](id ReceiverChannelID, name string) *Endpoint[T] {
	return newEndpoint[T](receiverNotConnected{id: id, name: ReceiverName(name)})
}

func newSenderEndpoint[T any](id SenderChannelID, rx *Receiver[Message[T]], name string) *Endpoint[T] {
	return newEndpoint[T](senderNotConnected[T]{id: id, rx: rx, name: SenderName(name)})
}

func (ep *Endpoint[T]) load() endpointState[T] {
	return ep.state.Load().s
}

// State returns the current connection state.
func (ep *Endpoint[T]) State() EndpointState {
	return ep.load().kind()
}

// IsConnected reports whether the endpoint has been paired.
func (ep *Endpoint[T]) IsConnected() bool {
	switch ep.load().(type) {
	case connectedReceiver[T], connectedSender:
		return true
	}
	return false
}

// ChannelID returns the id allocated when the endpoint was connected.
func (ep *Endpoint[T]) ChannelID() (ChannelID, bool) {
	switch s := ep.load().(type) {
	case connectedReceiver[T]:
		return s.channelID, true
	case connectedSender:
		return s.channelID, true
	}
	return ChannelID{}, false
}

// PeerSender returns the name of the task feeding a connected receiver.
func (ep *Endpoint[T]) PeerSender() (SenderName, bool) {
	if s, ok := ep.load().(connectedReceiver[T]); ok {
		return s.peer, true
	}
	return "", false
}

// PeerReceiver returns the name of the task consuming a connected sender.
func (ep *Endpoint[T]) PeerReceiver() (ReceiverName, bool) {
	if s, ok := ep.load().(connectedSender); ok {
		return s.peer, true
	}
	return "", false
}

// Receiver returns the receiving half owned by a connected receiver.
func (ep *Endpoint[T]) Receiver() (*Receiver[Message[T]], bool) {
	if s, ok := ep.load().(connectedReceiver[T]); ok {
		return s.rx, true
	}
	return nil, false
}

// Iter yields the messages available on a connected receiver.
// For any other state the sequence is empty.
func (ep *Endpoint[T]) Iter() iter.Seq[Message[T]] {
	if rx, ok := ep.Receiver(); ok {
		return rx.Iter()
	}
	return func(func(Message[T]) bool) {}
}

// Seqno returns the consumed position of a connected receiver, zero otherwise.
func (ep *Endpoint[T]) Seqno() ChannelPosition {
	if rx, ok := ep.Receiver(); ok {
		return ChannelPosition(rx.Seqno())
	}
	return 0
}

// AvailablePos returns the producer position visible through a connected
// receiver, zero otherwise.
func (ep *Endpoint[T]) AvailablePos() ChannelPosition {
	if rx, ok := ep.Receiver(); ok {
		return ChannelPosition(rx.WriteSeqno())
	}
	return 0
}

func (ep *Endpoint[T]) String() string {
	switch s := ep.load().(type) {
	case receiverNotConnected:
		return fmt.Sprintf("ReceiverNotConnected(in#%d, %s)", s.id, s.name)
	case connectedReceiver[T]:
		return fmt.Sprintf("ConnectedReceiver(%s, from %s)", s.channelID, s.peer)
	case senderNotConnected[T]:
		return fmt.Sprintf("SenderNotConnected(out#%d, %s)", s.id, s.name)
	case connectedSender:
		return fmt.Sprintf("ConnectedSender(%s, to %s)", s.channelID, s.peer)
	}
	return "Endpoint(?)"
}

// Connect pairs an unconnected output endpoint with an unconnected input
// endpoint. The receiving half moves from sender to receiver and both
// endpoints learn the allocated ChannelID and their peer's name.
//
// It returns ErrAlreadyExists if either endpoint is already connected,
// ErrNonExistent if an endpoint is nil or of the wrong direction, and ErrBusy
// if another Connect currently holds one of them. On error neither endpoint
// changes.
func Connect[T any](sender, receiver *Endpoint[T]) error {
	if sender == nil || receiver == nil {
		return fmt.Errorf("connect: nil endpoint: %w", ErrNonExistent)
	}
	if sender == receiver {
		return fmt.Errorf("connect: endpoint cannot be connected to itself: %w", ErrNonExistent)
	}

	if !sender.mu.TryLock() {
		return fmt.Errorf("connect %s: %w", sender, ErrBusy)
	}
	defer sender.mu.Unlock()
	if !receiver.mu.TryLock() {
		return fmt.Errorf("connect %s: %w", receiver, ErrBusy)
	}
	defer receiver.mu.Unlock()

	var (
		tx senderNotConnected[T]
		rx receiverNotConnected
	)
	switch s := sender.load().(type) {
	case senderNotConnected[T]:
		tx = s
	case connectedSender:
		return fmt.Errorf("connect %s: %w", sender, ErrAlreadyExists)
	default:
		return fmt.Errorf("connect: %s is not an output: %w", sender, ErrNonExistent)
	}
	switch s := receiver.load().(type) {
	case receiverNotConnected:
		rx = s
	case connectedReceiver[T]:
		return fmt.Errorf("connect %s: %w", receiver, ErrAlreadyExists)
	default:
		return fmt.Errorf("connect: %s is not an input: %w", receiver, ErrNonExistent)
	}

	id := ChannelID{SenderID: tx.id, ReceiverID: rx.id}
	receiver.state.Store(&stateBox[T]{s: connectedReceiver[T]{channelID: id, rx: tx.rx, peer: tx.name}})
	sender.state.Store(&stateBox[T]{s: connectedSender{channelID: id, peer: rx.name}})
	return nil
}
