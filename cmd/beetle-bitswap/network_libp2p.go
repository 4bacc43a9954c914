package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	libp2pnetwork "github.com/libp2p/go-libp2p/core/network"
	"github.com/prometheus/client_golang/prometheus"

	gocid "github.com/ipfs/go-cid"

	"github.com/RandyMcMillan/beetle/message"
	"github.com/RandyMcMillan/beetle/network"
	"github.com/RandyMcMillan/beetle/protocol"
)

// libp2pNetwork is the concrete network.MessageNetwork this demo wires to
// the engine. Framing is a 4-byte big-endian length prefix around a JSON
// payload — the same length-prefixed-frame idiom eth/handler.go's p2p.Msg
// uses around RLP, substituting JSON since the wire shapes here are small
// and CIDs already marshal to JSON cleanly (go-cid's MarshalJSON).
type libp2pNetwork struct {
	host     host.Host
	receiver network.Receiver
	localIDs []protocol.ID
}

func newLibp2pNetwork(ctx context.Context, reg prometheus.Registerer) (*libp2pNetwork, error) {
	h, err := libp2p.New()
	if err != nil {
		return nil, fmt.Errorf("creating libp2p host: %w", err)
	}
	n := &libp2pNetwork{host: h, localIDs: protocol.DefaultIDs}
	for _, wireID := range protocol.WireIDs(protocol.DefaultIDs) {
		h.SetStreamHandler(wireID, n.handleStream)
	}
	return n, nil
}

func (n *libp2pNetwork) Close() error {
	return n.host.Close()
}

// Dial satisfies network.Dialer by asking the host to open a connection to
// an already-known peer address in its peerstore.
func (n *libp2pNetwork) Dial(ctx context.Context, p network.PeerId) error {
	return n.host.Connect(ctx, n.host.Peerstore().PeerInfo(p))
}

// NewMessageSender satisfies network.MessageNetwork by opening a fresh
// outbound stream negotiated against the configured protocol preference.
func (n *libp2pNetwork) NewMessageSender(ctx context.Context, p network.PeerId) (network.MessageSender, error) {
	s, err := n.host.NewStream(ctx, p, protocol.WireIDs(n.localIDs)...)
	if err != nil {
		return nil, err
	}
	if agreed, ok := protocol.Parse(s.Protocol()); ok && n.receiver != nil {
		n.receiver.OnProtocolNegotiated(p, agreed)
	}
	return &libp2pSender{stream: s}, nil
}

// handleStream is registered against every supported wire protocol name; it
// reports the negotiated protocol once, then loops decoding messages until
// the stream errs, reporting that as a closed connection.
func (n *libp2pNetwork) handleStream(s libp2pnetwork.Stream) {
	p := s.Conn().RemotePeer()
	if n.receiver != nil {
		n.receiver.OnConnectionEstablished(p)
		if agreed, ok := protocol.Parse(s.Protocol()); ok {
			n.receiver.OnProtocolNegotiated(p, agreed)
		}
	}
	defer s.Close()
	r := bufio.NewReader(s)
	for {
		msg, err := readMessage(r)
		if err != nil {
			if n.receiver != nil {
				n.receiver.OnConnectionClosed(p)
			}
			return
		}
		if n.receiver != nil {
			n.receiver.ReceiveMessage(p, msg)
		}
	}
}

type libp2pSender struct {
	stream libp2pnetwork.Stream
}

func (s *libp2pSender) SendMsg(ctx context.Context, msg *message.Message) error {
	w := toWire(msg)
	if id, ok := protocol.Parse(s.stream.Protocol()); ok && !id.SupportsWantHave() {
		// Protocols older than v1.2.0 carry neither Want-Have nor presences.
		w.WantHaves, w.Presences = nil, nil
	}
	return writeMessage(s.stream, w)
}

func (s *libp2pSender) Close() error {
	return s.stream.Close()
}

// wireEntry and wireMessage mirror message.Message's exported accessors
// into a JSON-friendly shape; message.Message keeps its fields unexported
// so the engine package never has to think about wire format.
type wireEntry struct {
	Cid      gocid.Cid `json:"cid"`
	Priority int32     `json:"priority"`
}

type wirePresence struct {
	Cid  gocid.Cid `json:"cid"`
	Have bool      `json:"have"`
}

type wireBlock struct {
	Cid  gocid.Cid `json:"cid"`
	Data []byte    `json:"data"`
}

type wireMessage struct {
	Full       bool           `json:"full"`
	WantBlocks []wireEntry    `json:"want_blocks,omitempty"`
	WantHaves  []wireEntry    `json:"want_haves,omitempty"`
	Cancels    []gocid.Cid    `json:"cancels,omitempty"`
	Blocks     []wireBlock    `json:"blocks,omitempty"`
	Presences  []wirePresence `json:"presences,omitempty"`
}

func toWire(m *message.Message) wireMessage {
	w := wireMessage{Full: m.Full}
	for _, e := range m.Blocks() {
		w.WantBlocks = append(w.WantBlocks, wireEntry{Cid: e.Cid, Priority: e.Priority})
	}
	for _, e := range m.WantHaveBlocks() {
		w.WantHaves = append(w.WantHaves, wireEntry{Cid: e.Cid, Priority: e.Priority})
	}
	w.Cancels = append(w.Cancels, m.Cancels()...)
	for _, b := range m.BlockPayloads() {
		w.Blocks = append(w.Blocks, wireBlock{Cid: b.Cid, Data: b.Data})
	}
	for _, p := range m.Presences() {
		w.Presences = append(w.Presences, wirePresence{Cid: p.Cid, Have: p.Kind == message.Have})
	}
	return w
}

func fromWire(w wireMessage) *message.Message {
	m := message.New(w.Full)
	for _, e := range w.WantBlocks {
		m.WantBlock(e.Cid, e.Priority)
	}
	for _, e := range w.WantHaves {
		m.WantHave(e.Cid, e.Priority)
	}
	for _, cid := range w.Cancels {
		m.CancelBlock(cid)
	}
	for _, b := range w.Blocks {
		m.AddBlock(b.Cid, b.Data)
	}
	for _, p := range w.Presences {
		kind := message.DontHave
		if p.Have {
			kind = message.Have
		}
		m.AddBlockPresence(p.Cid, kind)
	}
	return m
}

const maxFrameBytes = 4 << 20 // 4 MiB, generous for a demo but not unbounded

func writeMessage(w io.Writer, wm wireMessage) error {
	payload, err := json.Marshal(wm)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func readMessage(r io.Reader) (*message.Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameBytes {
		return nil, fmt.Errorf("frame of %d bytes exceeds %d byte limit", n, maxFrameBytes)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	var w wireMessage
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	return fromWire(w), nil
}
