package service

import (
	"context"
	"testing"
	"time"

	"TagChat/consts"
	"TagChat/internal/dto"
	"TagChat/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessageRepoForService struct {
	createFn          func(context.Context, *model.Message) (*model.Message, error)
	getConversationFn func(context.Context, string, string, int) ([]*model.Message, error)
}

func (f *fakeMessageRepoForService) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if f.createFn == nil {
		return msg, nil
	}
	return f.createFn(ctx, msg)
}

func (f *fakeMessageRepoForService) GetConversation(ctx context.Context, userUUID, peerUUID string, limit int) ([]*model.Message, error) {
	if f.getConversationFn == nil {
		return nil, nil
	}
	return f.getConversationFn(ctx, userUUID, peerUUID, limit)
}

func friendRelationRepo() *fakeRelationRepoForService {
	return &fakeRelationRepoForService{
		isFriendFn: func(_ context.Context, _, _ string) (bool, error) { return true, nil },
	}
}

func TestMessageServiceSend(t *testing.T) {
	initServiceTest()

	t.Run("empty_content", func(t *testing.T) {
		svc := NewMessageService(&fakeMessageRepoForService{}, friendRelationRepo(), &fakeNotifier{})
		for _, content := range []string{"", "   ", "\n\t"} {
			_, err := svc.Send(context.Background(), "u1", &dto.SendMessageRequest{
				ReceiverUuid: "u2", Content: content,
			})
			requireBizCode(t, err, consts.CodeMessageEmpty)
		}
	})

	t.Run("not_friend", func(t *testing.T) {
		svc := NewMessageService(&fakeMessageRepoForService{}, &fakeRelationRepoForService{}, &fakeNotifier{})
		_, err := svc.Send(context.Background(), "u1", &dto.SendMessageRequest{
			ReceiverUuid: "u2", Content: "hello",
		})
		requireBizCode(t, err, consts.CodeNotFriend)
	})

	t.Run("success_persists_and_notifies", func(t *testing.T) {
		notifier := &fakeNotifier{}
		var persisted *model.Message
		svc := NewMessageService(&fakeMessageRepoForService{
			createFn: func(_ context.Context, msg *model.Message) (*model.Message, error) {
				persisted = msg
				return msg, nil
			},
		}, friendRelationRepo(), notifier)

		resp, err := svc.Send(context.Background(), "u1", &dto.SendMessageRequest{
			ReceiverUuid: "u2", Content: "  hello bob  ",
		})
		require.NoError(t, err)
		require.NotNil(t, persisted)
		assert.NotEmpty(t, persisted.Uuid)
		assert.Equal(t, "hello bob", persisted.Content) // 首尾空白被裁剪
		assert.Equal(t, "u1", persisted.SenderUuid)
		assert.Equal(t, "u2", persisted.ReceiverUuid)

		assert.Equal(t, persisted.Uuid, resp.Uuid)
		// 接收方和发送方的其它在线端都会收到推送
		require.Len(t, notifier.events, 2)
		assert.Equal(t, "u2", notifier.events[0].userUUID)
		assert.Equal(t, EventNewPrivateMessage, notifier.events[0].eventType)
		assert.Equal(t, "u1", notifier.events[1].userUUID)
		assert.Equal(t, EventNewPrivateMessage, notifier.events[1].eventType)
	})
}

func TestMessageServiceGetConversation(t *testing.T) {
	initServiceTest()

	t.Run("requires_friendship", func(t *testing.T) {
		svc := NewMessageService(&fakeMessageRepoForService{}, &fakeRelationRepoForService{}, &fakeNotifier{})
		_, err := svc.GetConversation(context.Background(), "u1", "u2")
		requireBizCode(t, err, consts.CodeNotFriend)
	})

	t.Run("returns_chronological_messages", func(t *testing.T) {
		base := time.Now().Add(-time.Hour)
		svc := NewMessageService(&fakeMessageRepoForService{
			getConversationFn: func(_ context.Context, userUUID, peerUUID string, limit int) ([]*model.Message, error) {
				assert.Equal(t, "u1", userUUID)
				assert.Equal(t, "u2", peerUUID)
				assert.Equal(t, 50, limit)
				return []*model.Message{
					{Uuid: "m1", SenderUuid: "u1", ReceiverUuid: "u2", Content: "hi", CreatedAt: base},
					{Uuid: "m2", SenderUuid: "u2", ReceiverUuid: "u1", Content: "hey", CreatedAt: base.Add(time.Minute)},
				}, nil
			},
		}, friendRelationRepo(), &fakeNotifier{})

		result, err := svc.GetConversation(context.Background(), "u1", "u2")
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, "m1", result[0].Uuid)
		assert.Equal(t, "m2", result[1].Uuid)
		assert.Less(t, result[0].CreatedAt, result[1].CreatedAt)
	})
}
