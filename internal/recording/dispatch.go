package recording

import (
	"context"
	"errors"
)

// Controller is the session API served by a Dispatcher.
type Controller interface {
	Admit(ctx context.Context, channel string) (SessionInfo, error)
	Stop(channel string) error
	List() []SessionInfo
}

type opKind int

const (
	opAdmit opKind = iota
	opStop
	opList
)

type request struct {
	ctx     context.Context
	op      opKind
	channel string
	reply   chan response
}

type response struct {
	info SessionInfo
	list []SessionInfo
	err  error
}

// ErrDispatcherClosed is returned for requests made after Run has returned.
var ErrDispatcherClosed = errors.New("session dispatcher stopped")

// Dispatcher feeds admit/stop/list requests to a Controller one at a time.
// Callers block until their reply arrives or their context ends.
type Dispatcher struct {
	target   Controller
	requests chan request
	closed   chan struct{}
}

// NewDispatcher wraps target. Run must be started before requests are made.
func NewDispatcher(target Controller) *Dispatcher {
	return &Dispatcher{
		target:   target,
		requests: make(chan request),
		closed:   make(chan struct{}),
	}
}

// Run serves requests until ctx ends.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.closed)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.requests:
			req.reply <- d.handle(req)
		}
	}
}

func (d *Dispatcher) handle(req request) response {
	switch req.op {
	case opAdmit:
		info, err := d.target.Admit(req.ctx, req.channel)
		return response{info: info, err: err}
	case opStop:
		return response{err: d.target.Stop(req.channel)}
	default:
		return response{list: d.target.List()}
	}
}

func (d *Dispatcher) call(ctx context.Context, op opKind, channel string) (response, error) {
	req := request{ctx: ctx, op: op, channel: channel, reply: make(chan response, 1)}
	select {
	case d.requests <- req:
	case <-d.closed:
		return response{}, ErrDispatcherClosed
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

// Admit forwards an admission request.
func (d *Dispatcher) Admit(ctx context.Context, channel string) (SessionInfo, error) {
	resp, err := d.call(ctx, opAdmit, channel)
	if err != nil {
		return SessionInfo{}, err
	}
	return resp.info, resp.err
}

// Stop forwards a stop request.
func (d *Dispatcher) Stop(ctx context.Context, channel string) error {
	resp, err := d.call(ctx, opStop, channel)
	if err != nil {
		return err
	}
	return resp.err
}

// List forwards a list request.
func (d *Dispatcher) List(ctx context.Context) ([]SessionInfo, error) {
	resp, err := d.call(ctx, opList, "")
	if err != nil {
		return nil, err
	}
	return resp.list, nil
}
