package server

import (
	"errors"

	"github.com/cuemby/docstore/pkg/metrics"
	"github.com/cuemby/docstore/pkg/protocol"
	"github.com/cuemby/docstore/pkg/query"
	"github.com/cuemby/docstore/pkg/storage"
	"github.com/cuemby/docstore/pkg/wire"
)

// messageTypeName returns the metrics label for a request variant.
func messageTypeName(msg protocol.Message) string {
	switch msg.(type) {
	case protocol.Insert:
		return "insert"
	case protocol.InsertOpe:
		return "insert_ope"
	case protocol.QueryMessage:
		return "query"
	case protocol.Count:
		return "count"
	case protocol.Update:
		return "update"
	case protocol.Delete:
		return "delete"
	case protocol.DeleteForUsecase:
		return "delete_for_usecase"
	case protocol.Drop:
		return "drop"
	default:
		return "unknown"
	}
}

// dispatcher decodes frames, enforces the connection state machine, and
// routes requests to storage/query. requireAuth defaults to false: the
// spec documents authentication as an unimplemented placeholder that
// request handling must not depend on (spec.md §4.7, §9 Open Question 3).
type dispatcher struct {
	store       storage.Store
	engine      *query.Engine
	requireAuth bool
}

func newDispatcher(store storage.Store) *dispatcher {
	return &dispatcher{
		store:  store,
		engine: query.NewEngine(store),
	}
}

// handle decodes and processes one frame, returning an optional reply
// frame and whether the connection must terminate afterward.
func (d *dispatcher) handle(c *conn, frame wire.Frame) (*wire.Frame, bool) {
	if !protocol.IsRequestTag(frame.Tag) {
		c.logger.Warn().Uint8("tag", frame.Tag).Msg("response-only variant received from client")
		return nil, true
	}

	msg, err := protocol.Decode(frame.Tag, frame.Payload)
	if err != nil {
		c.logger.Warn().Err(err).Msg("malformed frame")
		return nil, true
	}

	state := c.getState()
	if state == stateClosing || state == stateTerminated {
		return nil, true
	}

	switch m := msg.(type) {
	case protocol.ClientSetup:
		return d.handleSetup(c, m)
	case protocol.ClientAuthentication:
		return d.handleAuth(c, m)
	case protocol.EndOfCommunication:
		return d.handleEndOfCommunication(c)
	default:
		if d.requireAuth && state != stateReady {
			c.logger.Warn().Str("state", state.String()).Msg("request variant in wrong state")
			return nil, true
		}
		return d.handleRequest(c, msg)
	}
}

func (d *dispatcher) handleSetup(c *conn, m protocol.ClientSetup) (*wire.Frame, bool) {
	c.logger.Info().Str("protocol_version", m.ProtocolVersion).Strs("cipher_suites", m.CipherSuites).Msg("client setup")
	c.setState(stateSetup)
	return nil, false
}

func (d *dispatcher) handleAuth(c *conn, m protocol.ClientAuthentication) (*wire.Frame, bool) {
	c.logger.Info().Str("username", m.Username).Msg("client authentication (unenforced placeholder)")
	c.setState(stateReady)
	return nil, false
}

func (d *dispatcher) handleEndOfCommunication(c *conn) (*wire.Frame, bool) {
	c.setState(stateClosing)
	c.enqueueClose()
	return nil, true
}

// handleRequest dispatches a CRUD/query request to reply(request,
// terminate). Application-level failures (missing key, bad range) reply
// with a domain response rather than terminating (spec.md §7).
func (d *dispatcher) handleRequest(c *conn, msg protocol.Message) (*wire.Frame, bool) {
	label := messageTypeName(msg)
	timer := metrics.NewTimer()
	reply, err := d.execute(c, msg)
	timer.ObserveDurationVec(metrics.RequestDuration, label)

	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) && perr.Fatal() {
			metrics.RequestsTotal.WithLabelValues(label, "protocol_error").Inc()
			c.logger.Warn().Err(err).Msg("fatal request error")
			return nil, true
		}
		metrics.RequestsTotal.WithLabelValues(label, "application_error").Inc()
		c.logger.Debug().Err(err).Msg("request failed")
		return nil, false
	}
	metrics.RequestsTotal.WithLabelValues(label, "ok").Inc()
	if reply == nil {
		return nil, false
	}

	payload, err := protocol.Encode(reply)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to encode reply")
		return nil, true
	}
	return &wire.Frame{Tag: reply.Tag(), Payload: payload}, false
}

// observeStorageOp times fn and records its outcome under op's label.
func observeStorageOp(op string, fn func() error) error {
	timer := metrics.NewTimer()
	err := fn()
	timer.ObserveDurationVec(metrics.StorageOpDuration, op)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.StorageOpsTotal.WithLabelValues(op, outcome).Inc()
	return err
}

// execute runs a request against storage/query and translates storage
// failures into the corresponding domain failure response rather than
// propagating them: KV read/write/commit failure replies with the
// mutation's failure variant and continues the connection (spec.md §7).
// Only protocol-level errors (malformed query, unhandled variant) are
// returned as errors, which handleRequest treats as fatal.
func (d *dispatcher) execute(c *conn, msg protocol.Message) (protocol.Message, error) {
	switch m := msg.(type) {
	case protocol.Insert:
		var id string
		err := observeStorageOp("insert", func() (err error) {
			id, err = d.store.Insert(m.Collection, m.ACL, m.Data, m.Nonce, m.Usecases)
			return err
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("collection", m.Collection).Msg("insert failed")
			return protocol.NewInsertResponse(""), nil
		}
		return protocol.NewInsertResponse(id), nil

	case protocol.InsertOpe:
		raw, err := encodeOpeValue(m.Value)
		if err != nil {
			return nil, err
		}
		var id string
		err = observeStorageOp("insert_ope", func() (err error) {
			id, err = d.store.Insert(m.Collection, m.ACL, raw, nil, m.Usecases)
			return err
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("collection", m.Collection).Msg("insert_ope failed")
			return protocol.NewInsertResponse(""), nil
		}
		return protocol.NewInsertResponse(id), nil

	case protocol.QueryMessage:
		return d.executeQuery(c, m.Query)

	case protocol.Count:
		return d.executeCount(c, m)

	case protocol.Update:
		err := observeStorageOp("update", func() error {
			return d.store.Update(m.Collection, m.ID, m.NewValue)
		})
		switch {
		case err == nil:
			return protocol.NewUpdateResponse(protocol.UpdateSuccess), nil
		case errors.Is(err, storage.ErrKeyNotFound):
			return protocol.NewUpdateResponse(protocol.UpdateKeyNotFound), nil
		default:
			c.logger.Warn().Err(err).Str("collection", m.Collection).Msg("update failed")
			return protocol.NewUpdateResponse(protocol.UpdateFailure), nil
		}

	case protocol.Delete:
		var ok bool
		err := observeStorageOp("delete", func() (err error) {
			ok, err = d.store.Delete(m.Collection, m.ID)
			return err
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("collection", m.Collection).Msg("delete failed")
			return protocol.NewDeleteResult(false), nil
		}
		return protocol.NewDeleteResult(ok), nil

	case protocol.DeleteForUsecase:
		err := observeStorageOp("delete_for_usecase", func() error {
			return d.store.DeleteForUsecase(m.Collection, m.Usecase)
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("collection", m.Collection).Msg("delete_for_usecase failed")
			return protocol.NewDeleteResult(false), nil
		}
		return protocol.NewDeleteResult(true), nil

	case protocol.Drop:
		var ok bool
		err := observeStorageOp("drop", func() (err error) {
			ok, err = d.store.Drop(m.Collection)
			return err
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("collection", m.Collection).Msg("drop failed")
			return protocol.NewDropResult(false), nil
		}
		return protocol.NewDropResult(ok), nil

	default:
		return nil, &protocol.Error{Kind: protocol.ErrKindProtocolViolation, Err: errUnhandledVariant(msg)}
	}
}

func (d *dispatcher) executeQuery(c *conn, q protocol.Query) (protocol.Message, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if q.Kind == protocol.QueryGetByID {
		keys, values, err := d.engine.ResolveValues(q)
		if err != nil {
			c.logger.Warn().Err(err).Str("collection", q.GetByID.Collection).Msg("get_by_id query failed")
			return protocol.NewSingleValueResponse(nil, nil), nil
		}
		if len(keys) == 0 {
			return protocol.NewSingleValueResponse(nil, nil), nil
		}
		nonce, _, err := d.store.GetNonce(q.GetByID.Collection, q.GetByID.ID)
		if err != nil {
			c.logger.Warn().Err(err).Str("collection", q.GetByID.Collection).Msg("get_by_id nonce lookup failed")
			return protocol.NewSingleValueResponse(nil, nil), nil
		}
		return protocol.NewSingleValueResponse(values[0], nonce), nil
	}

	timer := metrics.NewTimer()
	_, values, nonces, err := d.engine.ResolveWithNonces(q)
	timer.ObserveDuration(metrics.QueryResolveDuration)
	if err != nil {
		c.logger.Warn().Err(err).Msg("query failed")
		return protocol.NewQueryResponse(nil, nil), nil
	}
	metrics.QueryResultSize.Observe(float64(len(values)))
	return protocol.NewQueryResponse(values, nonces), nil
}

func (d *dispatcher) executeCount(c *conn, m protocol.Count) (protocol.Message, error) {
	switch m.Kind {
	case protocol.CountUsecase:
		n, err := d.store.CountUsecase(m.Collection, m.Usecase)
		if err != nil {
			c.logger.Warn().Err(err).Str("collection", m.Collection).Msg("count failed")
			return protocol.NewCountResponse(0), nil
		}
		return protocol.NewCountResponse(int64(n)), nil
	default:
		n, err := d.store.CountCollection(m.Collection)
		if err != nil {
			c.logger.Warn().Err(err).Str("collection", m.Collection).Msg("count failed")
			return protocol.NewCountResponse(0), nil
		}
		return protocol.NewCountResponse(int64(n)), nil
	}
}
