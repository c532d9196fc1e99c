package client

import (
	"context"

	"github.com/gridcore/client/internal/proto"
)

// CounterHandle is a replicated PN-counter reference. It is sticky: once
// an operation succeeds against a member, the handle pins that address so
// later calls return to the same replica as long as it stays alive; a
// failure clears the pin and the next call falls back to round-robin
// selection.
//
// A handle is not safe for concurrent use by multiple goroutines: its
// stored address and replica timestamps are read-modify-written by every
// operation with no internal lock. Only the Channel and Cluster layers
// beneath it are built for concurrent access.
type CounterHandle struct {
	name    string
	cluster *Cluster

	lastAddress *Address
	timestamps  []proto.ReplicaTimestampEntry
}

func newCounterHandle(name string, cluster *Cluster) *CounterHandle {
	return &CounterHandle{name: name, cluster: cluster}
}

// Name returns the counter's name.
func (h *CounterHandle) Name() string { return h.name }

// resolve picks the address this operation will target: the pinned
// address if still enabled, otherwise the next round-robin pick.
func (h *CounterHandle) resolve() (Address, error) {
	return h.cluster.resolveAddress(h.lastAddress)
}

// settle records the outcome of an operation against addr: on success it
// pins addr and replaces the stored timestamp vector with the server's
// view; on failure it clears the pin so the next call re-resolves.
func (h *CounterHandle) settle(addr Address, ts []proto.ReplicaTimestampEntry, err error) error {
	if err != nil {
		h.lastAddress = nil
		return err
	}
	h.lastAddress = &addr
	h.timestamps = ts
	return nil
}

// Get resolves an address, sends a CounterGetRequest carrying the
// handle's stored replica timestamps, and returns the observed value.
func (h *CounterHandle) Get(ctx context.Context) (int64, error) {
	addr, err := h.resolve()
	if err != nil {
		return 0, err
	}

	req := proto.CounterGetRequest{
		Name:              h.name,
		ReplicaTimestamps: h.timestamps,
		Address:           addr.toProto(),
	}
	resp, err := h.cluster.forward(ctx, addr, proto.TypeCounterGetRequest, req.Encode())
	if err != nil {
		_ = h.settle(addr, nil, err)
		return 0, err
	}

	decoded, decErr := proto.DecodeCounterGetResponse(resp.Payload)
	if decErr != nil {
		_ = h.settle(addr, nil, protocolViolation("decode counter get response", decErr))
		return 0, protocolViolation("decode counter get response", decErr)
	}
	if err := h.settle(addr, decoded.ReplicaTimestamps, nil); err != nil {
		return 0, err
	}
	return decoded.Value, nil
}

// add is the shared implementation of GetAndAdd and AddAndGet: both send
// a CounterAddRequest, differing only in the get_before_update flag.
func (h *CounterHandle) add(ctx context.Context, delta int64, getBeforeUpdate bool) (int64, error) {
	addr, err := h.resolve()
	if err != nil {
		return 0, err
	}

	req := proto.CounterAddRequest{
		Name:              h.name,
		Delta:             delta,
		GetBeforeUpdate:   getBeforeUpdate,
		ReplicaTimestamps: h.timestamps,
		Address:           addr.toProto(),
	}
	resp, err := h.cluster.forward(ctx, addr, proto.TypeCounterAddRequest, req.Encode())
	if err != nil {
		_ = h.settle(addr, nil, err)
		return 0, err
	}

	decoded, decErr := proto.DecodeCounterAddResponse(resp.Payload)
	if decErr != nil {
		_ = h.settle(addr, nil, protocolViolation("decode counter add response", decErr))
		return 0, protocolViolation("decode counter add response", decErr)
	}
	if err := h.settle(addr, decoded.ReplicaTimestamps, nil); err != nil {
		return 0, err
	}
	return decoded.Value, nil
}

// GetAndAdd applies delta and returns the value observed before the
// update was applied.
func (h *CounterHandle) GetAndAdd(ctx context.Context, delta int64) (int64, error) {
	return h.add(ctx, delta, true)
}

// AddAndGet applies delta and returns the value observed after the
// update was applied.
func (h *CounterHandle) AddAndGet(ctx context.Context, delta int64) (int64, error) {
	return h.add(ctx, delta, false)
}

// ReplicaCount reports how many replicas back this counter. It sends only
// the counter name and leaves the stored replica timestamps untouched; like
// the other operations, it pins the member it used on success and clears
// the pin when forwarding the request fails.
func (h *CounterHandle) ReplicaCount(ctx context.Context) (uint32, error) {
	addr, err := h.resolve()
	if err != nil {
		return 0, err
	}

	req := proto.CounterReplicaCountRequest{Name: h.name}
	resp, err := h.cluster.forward(ctx, addr, proto.TypeCounterReplicaCountRequest, req.Encode())
	if err != nil {
		h.lastAddress = nil
		return 0, err
	}

	decoded, decErr := proto.DecodeCounterReplicaCountResponse(resp.Payload)
	if decErr != nil {
		return 0, protocolViolation("decode counter replica count response", decErr)
	}
	h.lastAddress = &addr
	return decoded.Count, nil
}
