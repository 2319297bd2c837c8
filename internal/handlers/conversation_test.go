package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"avenir-sync/internal/mocks"
	"avenir-sync/internal/models"
	"avenir-sync/internal/repositories"
	"avenir-sync/internal/service"
)

type handlerRepos struct {
	conv  *mocks.ConversationRepositoryMock
	msg   *mocks.MessageRepositoryMock
	notif *mocks.NotificationRepositoryMock
	user  *mocks.UserRepositoryMock
}

func setupConversationRouter(userID int) (*gin.Engine, handlerRepos) {
	gin.SetMode(gin.TestMode)
	repos := handlerRepos{
		conv:  new(mocks.ConversationRepositoryMock),
		msg:   new(mocks.MessageRepositoryMock),
		notif: new(mocks.NotificationRepositoryMock),
		user:  new(mocks.UserRepositoryMock),
	}
	svc := service.NewChatService(repos.conv, repos.msg, repos.notif, repos.user, nil, nil)
	handler := NewConversationHandler(svc, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	r.GET("/conversations", handler.ListConversations)
	r.POST("/conversations/help", handler.RequestHelp)
	r.POST("/conversations/:conversation_id/accept", handler.AcceptConversation)
	r.POST("/conversations/:conversation_id/transfer", handler.TransferConversation)
	r.GET("/conversations/:conversation_id/messages", handler.GetMessages)
	r.POST("/conversations/:conversation_id/messages", handler.PostMessage)
	r.POST("/conversations/:conversation_id/read", handler.MarkRead)
	return r, repos
}

func TestListConversationsSuccess(t *testing.T) {
	router, repos := setupConversationRouter(1)

	repos.conv.On("ListConversations", mock.Anything, 1).Return([]models.Conversation{
		{ID: 7, ClientID: 1, AdvisorID: 4, Status: models.ConversationOpen},
	}, nil).Once()
	repos.user.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Role: models.RoleClient}, nil).Once()
	repos.user.On("BulkUsers", mock.Anything, []int{4}).Return([]models.User{{ID: 4, Username: "alice"}}, nil).Once()
	repos.msg.On("UnreadCount", mock.Anything, 7, 1).Return(1, nil).Once()
	repos.msg.On("LastMessage", mock.Anything, 7).Return((*models.Message)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	require.Equal(t, "alice", resp.Conversations[0].PeerName)
	repos.conv.AssertExpectations(t)
}

func TestRequestHelpSuccess(t *testing.T) {
	router, repos := setupConversationRouter(1)

	repos.conv.On("CreateHelpConversation", mock.Anything, 1).Return(models.Conversation{ID: 7, ClientID: 1, Status: models.ConversationPending}, nil).Once()
	repos.msg.On("CreateMessage", mock.Anything, mock.Anything).Return(models.Message{ID: 3, ClientKey: "k1", ConversationID: 7}, nil).Once()
	repos.user.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "camille"}, nil).Once()

	body := bytes.NewBufferString(`{"content":"help me","client_key":"k1"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/help", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	repos.conv.AssertExpectations(t)
}

func TestRequestHelpMissingContent(t *testing.T) {
	router, _ := setupConversationRouter(1)

	req := httptest.NewRequest(http.MethodPost, "/conversations/help", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcceptConversationForbiddenForClients(t *testing.T) {
	router, repos := setupConversationRouter(1)
	repos.user.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Role: models.RoleClient}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/7/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetMessagesUnknownConversation(t *testing.T) {
	router, repos := setupConversationRouter(1)
	repos.conv.On("GetConversation", mock.Anything, 404).Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/404/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMessagesInvalidID(t *testing.T) {
	router, _ := setupConversationRouter(1)

	req := httptest.NewRequest(http.MethodGet, "/conversations/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessageClosedConversation(t *testing.T) {
	router, repos := setupConversationRouter(1)
	repos.conv.On("GetConversation", mock.Anything, 7).Return(models.Conversation{ID: 7, ClientID: 1, AdvisorID: 4, Status: models.ConversationClosed}, nil).Once()

	body := bytes.NewBufferString(`{"content":"too late","client_key":"k"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/7/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestPostMessageSuccess(t *testing.T) {
	router, repos := setupConversationRouter(1)
	repos.conv.On("GetConversation", mock.Anything, 7).Return(models.Conversation{ID: 7, ClientID: 1, AdvisorID: 4, Status: models.ConversationOpen}, nil).Once()
	repos.msg.On("CreateMessage", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.ReceiverID == 4 && m.ClientKey == "k2"
	})).Return(models.Message{ID: 9, ClientKey: "k2", ConversationID: 7, SenderID: 1, ReceiverID: 4, Content: "hello"}, nil).Once()

	body := bytes.NewBufferString(`{"content":"hello","client_key":"k2"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/7/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	require.Equal(t, 9, msg.ID)
	require.Equal(t, "k2", msg.ClientKey)
}

func TestMarkReadSuccess(t *testing.T) {
	router, repos := setupConversationRouter(1)
	repos.conv.On("GetConversation", mock.Anything, 7).Return(models.Conversation{ID: 7, ClientID: 1, AdvisorID: 4, Status: models.ConversationOpen}, nil).Once()
	repos.msg.On("MarkConversationRead", mock.Anything, 7, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/7/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	repos.msg.AssertExpectations(t)
}

func TestTransferRequiresCurrentAdvisor(t *testing.T) {
	router, repos := setupConversationRouter(1)
	repos.conv.On("GetConversation", mock.Anything, 7).Return(models.Conversation{ID: 7, ClientID: 2, AdvisorID: 4, Status: models.ConversationOpen}, nil).Once()

	body := bytes.NewBufferString(`{"new_advisor_id":5}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/7/transfer", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
