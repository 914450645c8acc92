package workflow

import (
	"time"

	"github.com/NicolasHaas/gochat/pkg/datastore"
	"github.com/NicolasHaas/gochat/pkg/metrics"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
	"github.com/NicolasHaas/gochat/pkg/service"
)

// Dependencies bundles what the built-in processors need.
type Dependencies struct {
	Store     datastore.DataProviderFactory
	Presence  Presence
	Friends   service.FriendService
	Groups    service.GroupService
	Auth      Authenticator
	Metrics   *metrics.Metrics
	SeedDelay time.Duration
}

// NewServerDispatcher registers every processor the server handles.
func NewServerDispatcher(deps Dependencies) *Dispatcher {
	d := NewDispatcher(deps.Metrics, deps.Presence)

	Register(d, pb.TypeLoginRequest,
		func(m *pb.ControlMessage) *pb.LoginRequest { return m.LoginRequest },
		&LoginProcessor{Auth: deps.Auth, Presence: deps.Presence, Metrics: deps.Metrics})
	Register(d, pb.TypeLogoutRequest,
		func(m *pb.ControlMessage) *pb.LogoutRequest { return m.LogoutRequest },
		&LogoutProcessor{Presence: deps.Presence})
	Register(d, pb.TypePing,
		func(m *pb.ControlMessage) *pb.Ping { return m.Ping },
		&PingProcessor{Presence: deps.Presence})
	Register(d, pb.TypeFriendRequestFromClient,
		func(m *pb.ControlMessage) *pb.FriendRequestFromClient { return m.FriendRequestFromClient },
		&FriendRequestProcessor{Store: deps.Store, Friends: deps.Friends, Presence: deps.Presence})
	Register(d, pb.TypeFriendResponseFromClient,
		func(m *pb.ControlMessage) *pb.FriendResponseFromClient { return m.FriendResponseFromClient },
		&FriendResponseProcessor{Store: deps.Store, Friends: deps.Friends, Presence: deps.Presence, SeedDelay: deps.SeedDelay})
	Register(d, pb.TypeUpdateGroupMessageRequest,
		func(m *pb.ControlMessage) *pb.UpdateGroupMessageRequest { return m.UpdateGroupMessageRequest },
		&UpdateGroupMessageRequestProcessor{Store: deps.Store, Groups: deps.Groups, Presence: deps.Presence})

	return d
}
