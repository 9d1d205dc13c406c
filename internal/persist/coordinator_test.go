package persist_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/mocks"
	"fable-server/internal/models"
	"fable-server/internal/persist"
)

func pipelineFixtures() (*models.StoryDraft, *models.TranslationResult, *models.VocabularyResult) {
	story := &models.StoryDraft{
		TitleEn:    "The Brave Little Cloud",
		SynopsisEn: "A cloud learns to rain.",
	}
	translation := &models.TranslationResult{
		TitleZh:    "勇敢的小云",
		SynopsisZh: "一朵云学会下雨。",
	}
	for i := 1; i <= 10; i++ {
		story.Pages = append(story.Pages, models.StoryDraftPage{
			PageNumber: i,
			TextEn:     fmt.Sprintf("Page %d text.", i),
		})
		translation.Pages = append(translation.Pages, models.TranslationPage{
			PageNumber: i,
			TextZh:     fmt.Sprintf("第%d页。", i),
		})
	}
	vocab := &models.VocabularyResult{}
	for i := 0; i < 10; i++ {
		vocab.Entries = append(vocab.Entries, models.VocabularyItem{Word: fmt.Sprintf("word%d", i)})
	}
	return story, translation, vocab
}

func TestCoordinatorSkipMode(t *testing.T) {
	story, translation, vocab := pipelineFixtures()
	c := persist.NewCoordinator(nil, nil, nil, true, zap.NewNop())

	ids, err := c.Persist(context.Background(), "story-ref-1", "clouds", story, translation, vocab)
	require.NoError(t, err)

	assert.Len(t, ids, 20)
	assert.Equal(t, "story-ref-1-image-1", ids[0])
	assert.Equal(t, "story-ref-1-audio-1", ids[1])
	assert.Equal(t, "story-ref-1-image-10", ids[18])
	assert.Equal(t, "story-ref-1-audio-10", ids[19])
}

func TestCoordinatorPersist(t *testing.T) {
	story, translation, vocab := pipelineFixtures()
	storyRef := uuid.New().String()

	jobIDs := make([]uuid.UUID, 20)
	for i := range jobIDs {
		jobIDs[i] = uuid.New()
	}

	t.Run("bundle write and push", func(t *testing.T) {
		storiesMock := new(mocks.MockStoryRepository)
		failedMock := new(mocks.MockFailedJobRepository)
		queueMock := new(mocks.MockQueue)

		storiesMock.On("PersistStoryBundle", mock.Anything,
			mock.MatchedBy(func(row *models.Story) bool {
				return row.ID.String() == storyRef &&
					row.Status == models.StoryStatusProcessing &&
					row.TitleZh == "勇敢的小云"
			}),
			mock.MatchedBy(func(pages []*models.StoryPage) bool {
				return len(pages) == 10 && pages[0].TextZh == "第1页。" && pages[0].WordCount == 3
			}),
			mock.MatchedBy(func(rows []*models.VocabEntry) bool { return len(rows) == 10 }),
			mock.MatchedBy(func(seeds []interfaces.MediaJobSeed) bool {
				return len(seeds) == 20 &&
					seeds[0].JobType == models.JobTypeImage &&
					seeds[1].JobType == models.JobTypeAudio
			}),
		).Return(jobIDs, nil).Once()
		queueMock.On("PushBatch", mock.Anything, mock.MatchedBy(func(messages []string) bool {
			if len(messages) != 20 {
				return false
			}
			return strings.Contains(messages[0], jobIDs[0].String()) &&
				strings.Contains(messages[19], jobIDs[19].String())
		})).Return(nil).Once()

		c := persist.NewCoordinator(storiesMock, failedMock, queueMock, false, zap.NewNop())
		ids, err := c.Persist(context.Background(), storyRef, "clouds", story, translation, vocab)
		require.NoError(t, err)

		assert.Len(t, ids, 20)
		assert.Equal(t, jobIDs[0].String(), ids[0])
		storiesMock.AssertExpectations(t)
		queueMock.AssertExpectations(t)
		failedMock.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("bundle failure records persistence stage", func(t *testing.T) {
		storiesMock := new(mocks.MockStoryRepository)
		failedMock := new(mocks.MockFailedJobRepository)
		queueMock := new(mocks.MockQueue)

		storiesMock.On("PersistStoryBundle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("constraint violation")).Once()
		failedMock.On("Insert", mock.Anything, mock.MatchedBy(func(row *models.FailedJob) bool {
			return row.ErrorCode == "persistence"
		})).Return(nil).Once()

		c := persist.NewCoordinator(storiesMock, failedMock, queueMock, false, zap.NewNop())
		_, err := c.Persist(context.Background(), storyRef, "clouds", story, translation, vocab)
		require.Error(t, err)

		failedMock.AssertExpectations(t)
		queueMock.AssertNotCalled(t, "PushBatch", mock.Anything, mock.Anything)
	})

	t.Run("push failure records upstash stage but keeps ids", func(t *testing.T) {
		storiesMock := new(mocks.MockStoryRepository)
		failedMock := new(mocks.MockFailedJobRepository)
		queueMock := new(mocks.MockQueue)

		storiesMock.On("PersistStoryBundle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(jobIDs, nil).Once()
		queueMock.On("PushBatch", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
		failedMock.On("Insert", mock.Anything, mock.MatchedBy(func(row *models.FailedJob) bool {
			return row.ErrorCode == "upstash_push" && strings.Contains(row.ErrorMessage, "pushedJobCount")
		})).Return(nil).Once()

		c := persist.NewCoordinator(storiesMock, failedMock, queueMock, false, zap.NewNop())
		ids, err := c.Persist(context.Background(), storyRef, "clouds", story, translation, vocab)
		require.NoError(t, err)

		assert.Len(t, ids, 20)
		queueMock.AssertNumberOfCalls(t, "PushBatch", 1)
		failedMock.AssertExpectations(t)
	})

	t.Run("non-uuid ref lands in metadata", func(t *testing.T) {
		storiesMock := new(mocks.MockStoryRepository)
		failedMock := new(mocks.MockFailedJobRepository)
		queueMock := new(mocks.MockQueue)

		storiesMock.On("PersistStoryBundle", mock.Anything,
			mock.MatchedBy(func(row *models.Story) bool {
				return row.ID != uuid.Nil && strings.Contains(string(row.Metadata), "legacy-ref")
			}),
			mock.Anything, mock.Anything, mock.Anything,
		).Return(jobIDs, nil).Once()
		queueMock.On("PushBatch", mock.Anything, mock.Anything).Return(nil)

		c := persist.NewCoordinator(storiesMock, failedMock, queueMock, false, zap.NewNop())
		_, err := c.Persist(context.Background(), "legacy-ref", "clouds", story, translation, vocab)
		require.NoError(t, err)
		storiesMock.AssertExpectations(t)
	})
}
