// Package client provides a thin, synchronous client over docstore's
// wire protocol, for CLI and test use.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/cuemby/docstore/pkg/protocol"
	"github.com/cuemby/docstore/pkg/wire"
)

// Client wraps a single connection to a docstore server. It is not safe
// for concurrent use: the protocol is strictly request/reply per
// connection (spec.md §4.7), so callers needing concurrency should pool
// Clients rather than share one.
type Client struct {
	conn   net.Conn
	reader *wire.Reader
	writer *wire.Writer
}

// Dial connects to addr and performs the NEW→SETUP→READY handshake:
// ClientSetup followed by ClientAuthentication. Authentication is
// unenforced by the reference server (spec.md §9 Open Question 3), but
// the handshake is still sent so a Client always leaves Dial in the
// READY state.
func Dial(addr, username, password string) (*Client, error) {
	raw, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("client: failed to connect to %s: %w", addr, err)
	}

	c := &Client{
		conn:   raw,
		reader: wire.NewReader(raw),
		writer: wire.NewWriter(raw),
	}

	if err := c.send(protocol.NewClientSetup("1.0", nil, []string{"kyber768", "falcon"}, "none")); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if err := c.send(protocol.NewClientAuthentication(username, password)); err != nil {
		_ = raw.Close()
		return nil, err
	}

	return c, nil
}

// Close sends EndOfCommunication and waits for the server's
// CloseCommunication acknowledgement before closing the socket.
func (c *Client) Close() error {
	if err := c.send(protocol.NewEndOfCommunication()); err != nil {
		return c.conn.Close()
	}
	for {
		frame, err := c.reader.ReadFrame()
		if err != nil {
			break
		}
		if frame.Tag == protocol.TagCloseCommunication {
			break
		}
	}
	return c.conn.Close()
}

func (c *Client) send(m protocol.Message) error {
	payload, err := protocol.Encode(m)
	if err != nil {
		return fmt.Errorf("client: failed to encode %T: %w", m, err)
	}
	return c.writer.WriteFrame(m.Tag(), payload)
}

// roundTrip sends m and decodes the next frame as a reply.
func (c *Client) roundTrip(m protocol.Message) (protocol.Message, error) {
	if err := c.send(m); err != nil {
		return nil, err
	}
	frame, err := c.reader.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("client: failed to read reply: %w", err)
	}
	return protocol.Decode(frame.Tag, frame.Payload)
}

// Insert stores an opaque row and returns its generated id.
func (c *Client) Insert(collection string, acl []string, data []byte, usecases []string, nonce []byte) (string, error) {
	reply, err := c.roundTrip(protocol.NewInsert(collection, acl, data, usecases, nonce))
	if err != nil {
		return "", err
	}
	resp, ok := reply.(protocol.InsertResponse)
	if !ok {
		return "", fmt.Errorf("client: unexpected reply type %T for Insert", reply)
	}
	return resp.InsertedID, nil
}

// InsertOpe stores a range-queryable numeric row and returns its
// generated id.
func (c *Client) InsertOpe(collection string, acl []string, value float64, usecases []string) (string, error) {
	reply, err := c.roundTrip(protocol.NewInsertOpe(collection, acl, value, usecases))
	if err != nil {
		return "", err
	}
	resp, ok := reply.(protocol.InsertResponse)
	if !ok {
		return "", fmt.Errorf("client: unexpected reply type %T for InsertOpe", reply)
	}
	return resp.InsertedID, nil
}

// GetByID fetches a single row by id.
func (c *Client) GetByID(collection, id string) (data, nonce []byte, err error) {
	reply, err := c.roundTrip(protocol.NewQueryMessage(protocol.NewGetByIDQuery(collection, id)))
	if err != nil {
		return nil, nil, err
	}
	resp, ok := reply.(protocol.SingleValueResponse)
	if !ok {
		return nil, nil, fmt.Errorf("client: unexpected reply type %T for GetByID", reply)
	}
	return resp.Data, resp.Nonce, nil
}

// Query executes an arbitrary query and returns its matched rows.
func (c *Client) Query(q protocol.Query) (data, nonces [][]byte, err error) {
	reply, err := c.roundTrip(protocol.NewQueryMessage(q))
	if err != nil {
		return nil, nil, err
	}
	resp, ok := reply.(protocol.QueryResponse)
	if !ok {
		return nil, nil, fmt.Errorf("client: unexpected reply type %T for Query", reply)
	}
	return resp.Data, resp.Nonces, nil
}

// Count returns the size of a collection's key index.
func (c *Client) Count(collection string) (int64, error) {
	reply, err := c.roundTrip(protocol.NewCountCollection(collection))
	if err != nil {
		return 0, err
	}
	resp, ok := reply.(protocol.CountResponse)
	if !ok {
		return 0, fmt.Errorf("client: unexpected reply type %T for Count", reply)
	}
	return resp.N, nil
}

// CountUsecase returns the size of a usecase index.
func (c *Client) CountUsecase(collection, usecase string) (int64, error) {
	reply, err := c.roundTrip(protocol.NewCountUsecase(collection, usecase))
	if err != nil {
		return 0, err
	}
	resp, ok := reply.(protocol.CountResponse)
	if !ok {
		return 0, fmt.Errorf("client: unexpected reply type %T for CountUsecase", reply)
	}
	return resp.N, nil
}

// Update overwrites an existing row's data.
func (c *Client) Update(collection, id string, newValue []byte) (protocol.UpdateStatus, error) {
	reply, err := c.roundTrip(protocol.NewUpdate(collection, id, newValue))
	if err != nil {
		return "", err
	}
	resp, ok := reply.(protocol.UpdateResponse)
	if !ok {
		return "", fmt.Errorf("client: unexpected reply type %T for Update", reply)
	}
	return resp.Status, nil
}

// Delete removes a single row by id.
func (c *Client) Delete(collection, id string) (bool, error) {
	reply, err := c.roundTrip(protocol.NewDelete(collection, id))
	if err != nil {
		return false, err
	}
	resp, ok := reply.(protocol.DeleteResult)
	if !ok {
		return false, fmt.Errorf("client: unexpected reply type %T for Delete", reply)
	}
	return resp.OK, nil
}

// DeleteForUsecase drops a usecase index without touching its rows.
func (c *Client) DeleteForUsecase(collection, usecase string) error {
	reply, err := c.roundTrip(protocol.NewDeleteForUsecase(collection, usecase))
	if err != nil {
		return err
	}
	if _, ok := reply.(protocol.DeleteResult); !ok {
		return fmt.Errorf("client: unexpected reply type %T for DeleteForUsecase", reply)
	}
	return nil
}

// Drop removes every row and index entry belonging to a collection.
func (c *Client) Drop(collection string) (bool, error) {
	reply, err := c.roundTrip(protocol.NewDrop(collection))
	if err != nil {
		return false, err
	}
	resp, ok := reply.(protocol.DropResult)
	if !ok {
		return false, fmt.Errorf("client: unexpected reply type %T for Drop", reply)
	}
	return resp.OK, nil
}
