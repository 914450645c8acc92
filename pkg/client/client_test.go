package client

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/gochat/pkg/protocol"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

func TestLoginAndEvents(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	c := NewControlClient(clientSide)
	defer func() { _ = c.Close() }()

	events := make(chan *pb.ControlMessage, 4)
	c.SetEventHandler(func(msg *pb.ControlMessage) { events <- msg })

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- func() error {
			req, err := protocol.ReadControlMessage(serverSide)
			if err != nil {
				return err
			}
			if req.LoginRequest == nil || req.LoginRequest.UserID != "alice" {
				return assert.AnError
			}
			// A notice can race ahead of the login response.
			if err := protocol.WriteControlMessage(serverSide, &pb.ControlMessage{FriendLogin: &pb.FriendLoginMessage{FriendID: "bob"}}); err != nil {
				return err
			}
			if err := protocol.WriteControlMessage(serverSide, &pb.ControlMessage{LoginResponse: &pb.LoginResponse{
				Response: pb.CommonResponse{State: true},
				UserID:   "alice",
			}}); err != nil {
				return err
			}

			req, err = protocol.ReadControlMessage(serverSide)
			if err != nil {
				return err
			}
			if req.FriendRequestFromClient == nil || req.FriendRequestFromClient.UserTargetID != "carol" {
				return assert.AnError
			}
			if err := protocol.WriteControlMessage(serverSide, &pb.ControlMessage{FriendRequestResponse: &pb.FriendRequestFromClientResponse{
				Response:  pb.CommonResponse{State: true},
				RequestID: 9,
			}}); err != nil {
				return err
			}
			return serverSide.Close()
		}()
	}()

	resp, err := c.Login("alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.UserID)
	first := <-events
	assert.Equal(t, "bob", first.FriendLogin.FriendID)

	c.StartReceiving()
	require.NoError(t, c.RequestFriend("alice", "carol", "hi"))

	select {
	case msg := <-events:
		assert.Equal(t, int64(9), msg.FriendRequestResponse.RequestID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after server hung up")
	}
	require.NoError(t, <-serverErr)
}

func TestLoginRejected(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	c := NewControlClient(clientSide)
	defer func() { _ = c.Close() }()

	go func() {
		_, _ = protocol.ReadControlMessage(serverSide)
		_ = protocol.WriteControlMessage(serverSide, &pb.ControlMessage{LoginResponse: &pb.LoginResponse{
			Response: pb.CommonResponse{State: false, Message: "invalid user id or password"},
		}})
	}()

	resp, err := c.Login("alice", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid user id or password")
	assert.False(t, resp.Response.State)
}

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")

	assert.Equal(t, DefaultSettings(), LoadSettings(path))

	s := &Settings{Server: "chat.example.com:9700", UserID: "alice", TLS: true}
	require.NoError(t, s.Save(path))
	assert.Equal(t, s, LoadSettings(path))
}
