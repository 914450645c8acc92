// Package pb holds the control plane message schema.
//
// Messages are plain structs serialized as JSON. A ControlMessage carries
// exactly one non-nil payload; Type reports which one.
package pb

import "time"

// TimeLayout is the wire format of every timestamp string.
const TimeLayout = time.RFC3339

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a wire timestamp. It falls back to fallback when s is
// empty or malformed, clients are not trusted to send valid times.
func ParseTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return fallback
	}
	return t.UTC()
}

// ControlMessage wraps all control plane messages.
type ControlMessage struct {
	// Only one of these fields should be set.
	LoginRequest              *LoginRequest                     `json:"login_request,omitempty"`
	LoginResponse             *LoginResponse                    `json:"login_response,omitempty"`
	LogoutRequest             *LogoutRequest                    `json:"logout_request,omitempty"`
	LogoutCommand             *LogoutCommand                    `json:"logout_command,omitempty"`
	FriendLogin               *FriendLoginMessage               `json:"friend_login,omitempty"`
	FriendLogout              *FriendLogoutMessage              `json:"friend_logout,omitempty"`
	FriendRequestFromClient   *FriendRequestFromClient          `json:"friend_request_from_client,omitempty"`
	FriendRequestResponse     *FriendRequestFromClientResponse  `json:"friend_request_response,omitempty"`
	FriendRequestFromServer   *FriendRequestFromServer          `json:"friend_request_from_server,omitempty"`
	FriendResponseFromClient  *FriendResponseFromClient         `json:"friend_response_from_client,omitempty"`
	FriendResponseResponse    *FriendResponseFromClientResponse `json:"friend_response_response,omitempty"`
	FriendResponseFromServer  *FriendResponseFromServer         `json:"friend_response_from_server,omitempty"`
	NewFriend                 *NewFriendMessage                 `json:"new_friend,omitempty"`
	FriendChat                *FriendChatMessage                `json:"friend_chat,omitempty"`
	UpdateGroupMessageRequest *UpdateGroupMessageRequest        `json:"update_group_message_request,omitempty"`
	UpdateGroupMessage        *UpdateGroupMessage               `json:"update_group_message,omitempty"`
	CommonResponse            *CommonResponse                   `json:"common_response,omitempty"`
	Ping                      *Ping                             `json:"ping,omitempty"`
	Pong                      *Pong                             `json:"pong,omitempty"`
}

// MessageType tags the payload carried by a ControlMessage.
type MessageType int

const (
	TypeUnknown MessageType = iota
	TypeLoginRequest
	TypeLoginResponse
	TypeLogoutRequest
	TypeLogoutCommand
	TypeFriendLogin
	TypeFriendLogout
	TypeFriendRequestFromClient
	TypeFriendRequestResponse
	TypeFriendRequestFromServer
	TypeFriendResponseFromClient
	TypeFriendResponseResponse
	TypeFriendResponseFromServer
	TypeNewFriend
	TypeFriendChat
	TypeUpdateGroupMessageRequest
	TypeUpdateGroupMessage
	TypeCommonResponse
	TypePing
	TypePong
)

var typeNames = map[MessageType]string{
	TypeUnknown:                   "unknown",
	TypeLoginRequest:              "login_request",
	TypeLoginResponse:             "login_response",
	TypeLogoutRequest:             "logout_request",
	TypeLogoutCommand:             "logout_command",
	TypeFriendLogin:               "friend_login",
	TypeFriendLogout:              "friend_logout",
	TypeFriendRequestFromClient:   "friend_request_from_client",
	TypeFriendRequestResponse:     "friend_request_response",
	TypeFriendRequestFromServer:   "friend_request_from_server",
	TypeFriendResponseFromClient:  "friend_response_from_client",
	TypeFriendResponseResponse:    "friend_response_response",
	TypeFriendResponseFromServer:  "friend_response_from_server",
	TypeNewFriend:                 "new_friend",
	TypeFriendChat:                "friend_chat",
	TypeUpdateGroupMessageRequest: "update_group_message_request",
	TypeUpdateGroupMessage:        "update_group_message",
	TypeCommonResponse:            "common_response",
	TypePing:                      "ping",
	TypePong:                      "pong",
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Type returns the tag of the first non-nil payload, or TypeUnknown.
func (m *ControlMessage) Type() MessageType {
	switch {
	case m == nil:
		return TypeUnknown
	case m.LoginRequest != nil:
		return TypeLoginRequest
	case m.LoginResponse != nil:
		return TypeLoginResponse
	case m.LogoutRequest != nil:
		return TypeLogoutRequest
	case m.LogoutCommand != nil:
		return TypeLogoutCommand
	case m.FriendLogin != nil:
		return TypeFriendLogin
	case m.FriendLogout != nil:
		return TypeFriendLogout
	case m.FriendRequestFromClient != nil:
		return TypeFriendRequestFromClient
	case m.FriendRequestResponse != nil:
		return TypeFriendRequestResponse
	case m.FriendRequestFromServer != nil:
		return TypeFriendRequestFromServer
	case m.FriendResponseFromClient != nil:
		return TypeFriendResponseFromClient
	case m.FriendResponseResponse != nil:
		return TypeFriendResponseResponse
	case m.FriendResponseFromServer != nil:
		return TypeFriendResponseFromServer
	case m.NewFriend != nil:
		return TypeNewFriend
	case m.FriendChat != nil:
		return TypeFriendChat
	case m.UpdateGroupMessageRequest != nil:
		return TypeUpdateGroupMessageRequest
	case m.UpdateGroupMessage != nil:
		return TypeUpdateGroupMessage
	case m.CommonResponse != nil:
		return TypeCommonResponse
	case m.Ping != nil:
		return TypePing
	case m.Pong != nil:
		return TypePong
	default:
		return TypeUnknown
	}
}

// ----- Generic -----

type CommonResponse struct {
	State   bool   `json:"state"`
	Message string `json:"message,omitempty"`
}

type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

// ----- Session -----

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Response CommonResponse `json:"response"`
	UserID   string         `json:"user_id,omitempty"`
	Username string         `json:"username,omitempty"`
}

type LogoutRequest struct{}

// LogoutCommand tells a client its session was ended by the server.
type LogoutCommand struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type FriendLoginMessage struct {
	FriendID  string `json:"friend_id"`
	LoginTime string `json:"login_time"`
}

type FriendLogoutMessage struct {
	FriendID   string `json:"friend_id"`
	LogoutTime string `json:"logout_time"`
}

// ----- Friends -----

type FriendRequestFromClient struct {
	UserFromID   string `json:"user_from_id"`
	UserTargetID string `json:"user_target_id"`
	Group        string `json:"group"`
	Remark       string `json:"remark"`
	Message      string `json:"message"`
	RequestTime  string `json:"request_time"`
}

type FriendRequestFromClientResponse struct {
	Response  CommonResponse `json:"response"`
	RequestID int64          `json:"request_id,omitempty"`
}

type FriendRequestFromServer struct {
	RequestID   int64  `json:"request_id"`
	UserFromID  string `json:"user_from_id"`
	Message     string `json:"message"`
	RequestTime string `json:"request_time"`
}

type FriendResponseFromClient struct {
	RequestID    int64  `json:"request_id"`
	Accept       bool   `json:"accept"`
	ResponseTime string `json:"response_time"`
	Group        string `json:"group"`
	Remark       string `json:"remark"`
}

type FriendResponseFromClientResponse struct {
	Response CommonResponse `json:"response"`
}

type FriendResponseFromServer struct {
	Accept       bool   `json:"accept"`
	RequestID    int64  `json:"request_id"`
	ResponseTime string `json:"response_time"`
}

type NewFriendMessage struct {
	UserID       string `json:"user_id"`
	FriendID     string `json:"friend_id"`
	Grouping     string `json:"grouping"`
	Remark       string `json:"remark"`
	RelationTime string `json:"relation_time"`
}

type FriendChatMessage struct {
	ID           int64  `json:"id"`
	UserFromID   string `json:"user_from_id"`
	UserTargetID string `json:"user_target_id"`
	Text         string `json:"text"`
	Time         string `json:"time"`
}

// ----- Groups -----

type UpdateGroupMessageRequest struct {
	UserID      string `json:"user_id"`
	GroupID     string `json:"group_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateGroupMessage struct {
	Response *CommonResponse `json:"response,omitempty"`
	GroupID  string          `json:"group_id"`
}
