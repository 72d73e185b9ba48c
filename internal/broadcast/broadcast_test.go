package broadcast

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokensage/tokensage/internal/model"
)

func TestMemoryPublisher_RecordsPerTopic(t *testing.T) {
	pub := NewMemoryPublisher()
	ctx := context.Background()

	sig := model.Signal{TokenID: "sol:abc", Score: 3.2, Label: model.LabelHypeBuilding}
	require.NoError(t, pub.Publish(ctx, TopicSignals, sig))
	require.NoError(t, pub.Publish(ctx, TopicProphecies, []model.Prophecy{{TokenID: "sol:abc", Rank: 1}}))

	signals := pub.Messages(TopicSignals)
	require.Len(t, signals, 1)

	var got model.Signal
	require.NoError(t, json.Unmarshal(signals[0], &got))
	assert.Equal(t, "sol:abc", got.TokenID)
	assert.Equal(t, model.LabelHypeBuilding, got.Label)

	assert.Len(t, pub.Messages(TopicProphecies), 1)
	assert.Empty(t, pub.Messages("other"))
}

func TestRedisPublisher_PublishesJSON(t *testing.T) {
	client, mock := redismock.NewClientMock()
	pub := NewRedisPublisher(client)

	sig := model.Signal{TokenID: "sol:abc", Score: 3.2, Label: model.LabelHypeBuilding}
	data, err := json.Marshal(sig)
	require.NoError(t, err)

	mock.ExpectPublish(TopicSignals, data).SetVal(1)
	require.NoError(t, pub.Publish(context.Background(), TopicSignals, sig))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_PropagatesError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	pub := NewRedisPublisher(client)

	data, _ := json.Marshal(model.Signal{TokenID: "sol:abc"})
	mock.ExpectPublish(TopicSignals, data).SetErr(assert.AnError)

	err := pub.Publish(context.Background(), TopicSignals, model.Signal{TokenID: "sol:abc"})
	assert.Error(t, err)
}
