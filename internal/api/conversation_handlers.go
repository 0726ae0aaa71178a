package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/service"
)

func (s *Server) registerConversationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listConversations",
		Method:      http.MethodGet,
		Path:        "/api/v1/conversations",
		Summary:     "List conversations",
		Description: "Lists conversations the caller participates in, most recent first",
		Tags:        []string{"Conversations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListConversations)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMessages",
		Method:      http.MethodGet,
		Path:        "/api/v1/conversations/{id}/messages",
		Summary:     "List messages",
		Description: "Lists a conversation's messages in order",
		Tags:        []string{"Conversations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMessages)

	huma.Register(s.api, huma.Operation{
		OperationID:   "postMessage",
		Method:        http.MethodPost,
		Path:          "/api/v1/conversations/{id}/messages",
		Summary:       "Post message",
		Description:   "Posts a message to a conversation the caller participates in",
		Tags:          []string{"Conversations"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handlePostMessage)
}

// ListConversationsResponse contains a conversation listing.
type ListConversationsResponse struct {
	Conversations []*domain.Conversation `json:"conversations"`
}

// ListConversationsOutput wraps the conversation listing for Huma.
type ListConversationsOutput struct {
	Body ListConversationsResponse
}

// ListMessagesInput identifies a conversation and page size.
type ListMessagesInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Conversation ID"`
	Limit         int    `query:"limit" minimum:"0" maximum:"500" doc:"Maximum messages to return (0 for the default page)"`
}

// ListMessagesResponse contains a message listing.
type ListMessagesResponse struct {
	Messages []*domain.Message `json:"messages"`
}

// ListMessagesOutput wraps the message listing for Huma.
type ListMessagesOutput struct {
	Body ListMessagesResponse
}

// PostMessageRequest is the request body for posting a message.
type PostMessageRequest struct {
	Content string `json:"content" maxLength:"4000" doc:"Message text"`
}

// PostMessageInput wraps the message request for Huma.
type PostMessageInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Conversation ID"`
	Body          PostMessageRequest
}

// ConversationMessageOutput wraps a single message for Huma.
type ConversationMessageOutput struct {
	Body *domain.Message
}

func (s *Server) handleListConversations(ctx context.Context, _ *struct{}) (*ListConversationsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.services.Conversations.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ListConversationsOutput{Body: ListConversationsResponse{Conversations: list}}, nil
}

func (s *Server) handleListMessages(ctx context.Context, input *ListMessagesInput) (*ListMessagesOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.services.Conversations.ListMessages(ctx, userID, input.ID, input.Limit)
	if err != nil {
		return nil, err
	}
	return &ListMessagesOutput{Body: ListMessagesResponse{Messages: list}}, nil
}

func (s *Server) handlePostMessage(ctx context.Context, input *PostMessageInput) (*ConversationMessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := s.services.Conversations.PostMessage(ctx, userID, input.ID, service.PostMessageRequest{
		Content: input.Body.Content,
	})
	if err != nil {
		return nil, err
	}
	return &ConversationMessageOutput{Body: msg}, nil
}
