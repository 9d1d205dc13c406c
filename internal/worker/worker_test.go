package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fable-server/internal/interfaces"
	"fable-server/internal/mocks"
	"fable-server/internal/models"
	"fable-server/internal/orchestrator"
	"fable-server/internal/prompts"
	"fable-server/internal/queue"
	"fable-server/internal/worker"
)

type stubPipeline struct {
	generate func(ctx context.Context, storyRef string, req prompts.StoryRequest, attempt int) (*orchestrator.Result, error)
}

func (s stubPipeline) Generate(ctx context.Context, storyRef string, req prompts.StoryRequest, attempt int) (*orchestrator.Result, error) {
	return s.generate(ctx, storyRef, req, attempt)
}

func pipelineResult() *orchestrator.Result {
	return &orchestrator.Result{
		Story:       &models.StoryDraft{TitleEn: "The Cloud"},
		Translation: &models.TranslationResult{TitleZh: "云"},
		Vocabulary:  &models.VocabularyResult{},
	}
}

func makeJob(jobType models.JobType, payload string) *models.GenerationJob {
	return &models.GenerationJob{
		ID:      uuid.New(),
		StoryID: uuid.New(),
		JobType: jobType,
		Status:  models.JobStatusProcessing,
		Payload: json.RawMessage(payload),
	}
}

type handlerMocks struct {
	persister *mocks.MockPersister
	images    *mocks.MockImageGenerator
	speech    *mocks.MockSpeechGenerator
	composer  *mocks.MockVideoComposer
	uploader  *mocks.MockUploader
	assets    *mocks.MockAssetRepository
}

func newHandlers(pipeline worker.TextPipeline) (*worker.Handlers, handlerMocks) {
	m := handlerMocks{
		persister: new(mocks.MockPersister),
		images:    new(mocks.MockImageGenerator),
		speech:    new(mocks.MockSpeechGenerator),
		composer:  new(mocks.MockVideoComposer),
		uploader:  new(mocks.MockUploader),
		assets:    new(mocks.MockAssetRepository),
	}
	h := worker.NewHandlers(pipeline, m.persister, m.images, m.speech, m.composer, m.uploader, m.assets, zap.NewNop())
	return h, m
}

func TestHandlersStoryScript(t *testing.T) {
	t.Run("runs pipeline and persists", func(t *testing.T) {
		var gotRef string
		var gotAttempt int
		pipeline := stubPipeline{generate: func(_ context.Context, storyRef string, req prompts.StoryRequest, attempt int) (*orchestrator.Result, error) {
			gotRef = storyRef
			gotAttempt = attempt
			assert.Equal(t, "dragons", req.Theme)
			return pipelineResult(), nil
		}}
		h, m := newHandlers(pipeline)
		m.persister.On("Persist", mock.Anything, "story-ref-9", "dragons", mock.Anything, mock.Anything, mock.Anything).
			Return([]string{"j1", "j2"}, nil).Once()

		job := makeJob(models.JobTypeStoryScript, `{"storyId":"story-ref-9","theme":"dragons","tone":"warm"}`)
		job.RetryCount = 1

		uri, err := h.Handle(context.Background(), job)
		require.NoError(t, err)
		assert.Equal(t, "story://story-ref-9", uri)
		assert.Equal(t, "story-ref-9", gotRef)
		assert.Equal(t, 2, gotAttempt)
		m.persister.AssertExpectations(t)
	})

	t.Run("missing theme rejected before pipeline", func(t *testing.T) {
		pipeline := stubPipeline{generate: func(context.Context, string, prompts.StoryRequest, int) (*orchestrator.Result, error) {
			t.Fatal("pipeline must not run")
			return nil, nil
		}}
		h, _ := newHandlers(pipeline)

		_, err := h.Handle(context.Background(), makeJob(models.JobTypeStoryScript, `{"tone":"warm"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no theme")
	})

	t.Run("story ref falls back to job story id", func(t *testing.T) {
		var gotRef string
		pipeline := stubPipeline{generate: func(_ context.Context, storyRef string, _ prompts.StoryRequest, _ int) (*orchestrator.Result, error) {
			gotRef = storyRef
			return pipelineResult(), nil
		}}
		h, m := newHandlers(pipeline)
		m.persister.On("Persist", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return([]string{}, nil).Once()

		job := makeJob(models.JobTypeStoryScript, `{"theme":"dragons"}`)
		_, err := h.Handle(context.Background(), job)
		require.NoError(t, err)
		assert.Equal(t, job.StoryID.String(), gotRef)
	})
}

func TestHandlersImage(t *testing.T) {
	t.Run("generates and stores asset", func(t *testing.T) {
		h, m := newHandlers(nil)
		job := makeJob(models.JobTypeImage, `{"pageNumber":3,"textEn":"A cloud floats.","size":"1024x1024"}`)

		m.images.On("GenerateImage", mock.Anything,
			mock.MatchedBy(func(prompt string) bool { return strings.Contains(prompt, "A cloud floats.") }),
			"1024x1024",
		).Return(&interfaces.MediaResult{URI: "https://cdn.example/img.png", Format: "png"}, nil).Once()
		m.assets.On("InsertAssetIfAbsent", mock.Anything, mock.MatchedBy(func(asset *models.MediaAsset) bool {
			return asset.MediaType == models.MediaTypeImage &&
				asset.StoryID == job.StoryID &&
				asset.GeneratingJobID == job.ID &&
				strings.Contains(string(asset.Metadata), `"pageNumber":3`)
		})).Return(&models.MediaAsset{URI: "https://cdn.example/img.png"}, nil).Once()

		uri, err := h.Handle(context.Background(), job)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example/img.png", uri)
		m.images.AssertExpectations(t)
		m.assets.AssertExpectations(t)
	})

	t.Run("explicit prompt wins over page text", func(t *testing.T) {
		h, m := newHandlers(nil)
		m.images.On("GenerateImage", mock.Anything, "a castle at dawn", "").
			Return(&interfaces.MediaResult{URI: "u", Format: "png"}, nil).Once()
		m.assets.On("InsertAssetIfAbsent", mock.Anything, mock.Anything).
			Return(&models.MediaAsset{URI: "u"}, nil).Once()

		_, err := h.Handle(context.Background(), makeJob(models.JobTypeImage, `{"textEn":"ignored","prompt":"a castle at dawn"}`))
		require.NoError(t, err)
		m.images.AssertExpectations(t)
	})

	t.Run("generator error propagates", func(t *testing.T) {
		h, m := newHandlers(nil)
		m.images.On("GenerateImage", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("provider down")).Once()

		_, err := h.Handle(context.Background(), makeJob(models.JobTypeImage, `{"textEn":"x"}`))
		require.Error(t, err)
		m.assets.AssertNotCalled(t, "InsertAssetIfAbsent", mock.Anything, mock.Anything)
	})
}

func TestHandlersAudio(t *testing.T) {
	t.Run("local file is uploaded first", func(t *testing.T) {
		h, m := newHandlers(nil)
		job := makeJob(models.JobTypeAudio, `{"pageNumber":2,"textEn":"Page two.","voice":"alloy","format":"mp3"}`)
		objectName := fmt.Sprintf("stories/%s/audio/page-2.mp3", job.StoryID)

		m.speech.On("GenerateSpeech", mock.Anything, "Page two.", "alloy", "mp3").
			Return(&interfaces.MediaResult{URI: "/tmp/tts/page-2.mp3", Format: "mp3"}, nil).Once()
		m.uploader.On("Upload", mock.Anything, "/tmp/tts/page-2.mp3", objectName, "audio/mpeg").
			Return("https://cdn.example/audio.mp3", nil).Once()
		m.assets.On("InsertAssetIfAbsent", mock.Anything, mock.MatchedBy(func(asset *models.MediaAsset) bool {
			return asset.MediaType == models.MediaTypeAudio && asset.URI == "https://cdn.example/audio.mp3"
		})).Return(&models.MediaAsset{URI: "https://cdn.example/audio.mp3"}, nil).Once()

		uri, err := h.Handle(context.Background(), job)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example/audio.mp3", uri)
		m.uploader.AssertExpectations(t)
	})

	t.Run("remote uri skips upload", func(t *testing.T) {
		h, m := newHandlers(nil)
		m.speech.On("GenerateSpeech", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&interfaces.MediaResult{URI: "https://tts.example/clip.mp3", Format: "mp3"}, nil).Once()
		m.assets.On("InsertAssetIfAbsent", mock.Anything, mock.Anything).
			Return(&models.MediaAsset{URI: "https://tts.example/clip.mp3"}, nil).Once()

		_, err := h.Handle(context.Background(), makeJob(models.JobTypeAudio, `{"textEn":"hello"}`))
		require.NoError(t, err)
		m.uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty text rejected", func(t *testing.T) {
		h, m := newHandlers(nil)
		_, err := h.Handle(context.Background(), makeJob(models.JobTypeAudio, `{"voice":"alloy"}`))
		require.Error(t, err)
		m.speech.AssertNotCalled(t, "GenerateSpeech", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandlersVideo(t *testing.T) {
	t.Run("composes uploads and stores", func(t *testing.T) {
		h, m := newHandlers(nil)
		job := makeJob(models.JobTypeVideo, `{"imageUris":["a.png","b.png"],"audioUri":"n.mp3","fps":24}`)
		objectName := fmt.Sprintf("stories/%s/video/story.mp4", job.StoryID)

		m.composer.On("Compose", mock.Anything, mock.MatchedBy(func(input interfaces.VideoComposeInput) bool {
			return len(input.ImageURIs) == 2 && input.AudioURI == "n.mp3" && input.FPS == 24
		})).Return("/tmp/work/video.mp4", nil).Once()
		m.uploader.On("Upload", mock.Anything, "/tmp/work/video.mp4", objectName, "video/mp4").
			Return("https://cdn.example/story.mp4", nil).Once()
		m.assets.On("InsertAssetIfAbsent", mock.Anything, mock.MatchedBy(func(asset *models.MediaAsset) bool {
			return asset.MediaType == models.MediaTypeVideo && asset.URI == "https://cdn.example/story.mp4"
		})).Return(&models.MediaAsset{URI: "https://cdn.example/story.mp4"}, nil).Once()

		uri, err := h.Handle(context.Background(), job)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example/story.mp4", uri)
	})

	t.Run("no images rejected", func(t *testing.T) {
		h, m := newHandlers(nil)
		_, err := h.Handle(context.Background(), makeJob(models.JobTypeVideo, `{"imageUris":[]}`))
		require.Error(t, err)
		m.composer.AssertNotCalled(t, "Compose", mock.Anything, mock.Anything)
	})
}

func TestHandlersUnknownType(t *testing.T) {
	h, _ := newHandlers(nil)
	_, err := h.Handle(context.Background(), makeJob(models.JobType("telepathy"), `{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown job type "telepathy"`)
}

// runWorker крутит Run в фоне, пока ожидания моков не сработают.
func runWorker(t *testing.T, w *worker.Worker, done <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		w.Run(ctx, time.Second)
		close(finished)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Error("worker did not reach the expected state in time")
	}
	cancel()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func envelopeFor(t *testing.T, jobID uuid.UUID) string {
	t.Helper()
	message, err := queue.NewEnvelope(jobID.String()).Encode()
	require.NoError(t, err)
	return message
}

func TestWorkerRun(t *testing.T) {
	t.Run("completed job writes result uri", func(t *testing.T) {
		q := new(mocks.MockQueue)
		jobs := new(mocks.MockJobRepository)
		recorder := new(mocks.MockFailureRecorder)
		h, m := newHandlers(nil)
		job := makeJob(models.JobTypeImage, `{"textEn":"A cloud."}`)
		done := make(chan struct{})

		q.On("Pop", mock.Anything).Return(envelopeFor(t, job.ID), nil).Once()
		q.On("Pop", mock.Anything).Return("", nil)
		jobs.On("ClaimJob", mock.Anything, job.ID).Return(job, nil).Once()
		m.images.On("GenerateImage", mock.Anything, mock.Anything, mock.Anything).
			Return(&interfaces.MediaResult{URI: "https://cdn.example/img.png", Format: "png"}, nil).Once()
		m.assets.On("InsertAssetIfAbsent", mock.Anything, mock.Anything).
			Return(&models.MediaAsset{URI: "https://cdn.example/img.png"}, nil).Once()
		jobs.On("CompleteJob", mock.Anything, job.ID, "https://cdn.example/img.png").
			Return(nil).Once().
			Run(func(mock.Arguments) { close(done) })

		w := worker.New(q, jobs, h, recorder, 2, 3, zap.NewNop())
		runWorker(t, w, done)

		jobs.AssertExpectations(t)
		jobs.AssertNotCalled(t, "FailJob", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("claim miss touches nothing", func(t *testing.T) {
		q := new(mocks.MockQueue)
		jobs := new(mocks.MockJobRepository)
		recorder := new(mocks.MockFailureRecorder)
		h, _ := newHandlers(nil)
		jobID := uuid.New()
		done := make(chan struct{})

		q.On("Pop", mock.Anything).Return(envelopeFor(t, jobID), nil).Once()
		q.On("Pop", mock.Anything).Return("", nil)
		jobs.On("ClaimJob", mock.Anything, jobID).Return(nil, nil).Once().
			Run(func(mock.Arguments) { close(done) })

		w := worker.New(q, jobs, h, recorder, 2, 3, zap.NewNop())
		runWorker(t, w, done)

		jobs.AssertNotCalled(t, "FailJob", mock.Anything, mock.Anything, mock.Anything)
		jobs.AssertNotCalled(t, "CompleteJob", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed message is dropped", func(t *testing.T) {
		q := new(mocks.MockQueue)
		jobs := new(mocks.MockJobRepository)
		recorder := new(mocks.MockFailureRecorder)
		h, _ := newHandlers(nil)
		done := make(chan struct{})

		q.On("Pop", mock.Anything).Return("{not json", nil).Once()
		q.On("Pop", mock.Anything).Return("", nil).Run(func(mock.Arguments) {
			select {
			case <-done:
			default:
				close(done)
			}
		})

		w := worker.New(q, jobs, h, recorder, 2, 3, zap.NewNop())
		runWorker(t, w, done)

		jobs.AssertNotCalled(t, "ClaimJob", mock.Anything, mock.Anything)
	})

	t.Run("invalid row shape fails terminally", func(t *testing.T) {
		q := new(mocks.MockQueue)
		jobs := new(mocks.MockJobRepository)
		recorder := new(mocks.MockFailureRecorder)
		h, _ := newHandlers(nil)
		job := makeJob(models.JobTypeImage, ``)
		done := make(chan struct{})

		q.On("Pop", mock.Anything).Return(envelopeFor(t, job.ID), nil).Once()
		q.On("Pop", mock.Anything).Return("", nil)
		jobs.On("ClaimJob", mock.Anything, job.ID).Return(job, nil).Once()
		jobs.On("FailJob", mock.Anything, job.ID, "invalid_job_row_shape").
			Return(nil).Once().
			Run(func(mock.Arguments) { close(done) })

		w := worker.New(q, jobs, h, recorder, 2, 3, zap.NewNop())
		runWorker(t, w, done)

		jobs.AssertExpectations(t)
		jobs.AssertNotCalled(t, "IncrementRetry", mock.Anything, mock.Anything)
	})

	t.Run("failure below retry cap marked temporary", func(t *testing.T) {
		q := new(mocks.MockQueue)
		jobs := new(mocks.MockJobRepository)
		recorder := new(mocks.MockFailureRecorder)
		h, m := newHandlers(nil)
		job := makeJob(models.JobTypeImage, `{"textEn":"x"}`)
		done := make(chan struct{})

		q.On("Pop", mock.Anything).Return(envelopeFor(t, job.ID), nil).Once()
		q.On("Pop", mock.Anything).Return("", nil)
		jobs.On("ClaimJob", mock.Anything, job.ID).Return(job, nil).Once()
		m.images.On("GenerateImage", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("provider down")).Once()
		jobs.On("IncrementRetry", mock.Anything, job.ID).Return(1, nil).Once()
		jobs.On("FailJob", mock.Anything, job.ID, "temporary_error: provider down").
			Return(nil).Once().
			Run(func(mock.Arguments) { close(done) })

		w := worker.New(q, jobs, h, recorder, 2, 3, zap.NewNop())
		runWorker(t, w, done)

		jobs.AssertExpectations(t)
		recorder.AssertNotCalled(t, "RecordFailure", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failure at retry cap marked permanent and recorded", func(t *testing.T) {
		q := new(mocks.MockQueue)
		jobs := new(mocks.MockJobRepository)
		recorder := new(mocks.MockFailureRecorder)
		h, m := newHandlers(nil)
		job := makeJob(models.JobTypeAudio, `{"textEn":"x"}`)
		done := make(chan struct{})

		q.On("Pop", mock.Anything).Return(envelopeFor(t, job.ID), nil).Once()
		q.On("Pop", mock.Anything).Return("", nil)
		jobs.On("ClaimJob", mock.Anything, job.ID).Return(job, nil).Once()
		m.speech.On("GenerateSpeech", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("voice gone")).Once()
		jobs.On("IncrementRetry", mock.Anything, job.ID).Return(3, nil).Once()
		jobs.On("FailJob", mock.Anything, job.ID, "permanent_error: voice gone").Return(nil).Once()
		recorder.On("RecordFailure", mock.Anything, mock.MatchedBy(func(fctx interfaces.FailureContext) bool {
			return fctx.JobID == job.ID.String() &&
				fctx.StoryRef == job.StoryID.String() &&
				fctx.Stage == "audio" &&
				fctx.Attempt == 3
		}), mock.Anything).Return(nil).Once().
			Run(func(mock.Arguments) { close(done) })

		w := worker.New(q, jobs, h, recorder, 2, 3, zap.NewNop())
		runWorker(t, w, done)

		jobs.AssertExpectations(t)
		recorder.AssertExpectations(t)
	})
}

func TestReconciler(t *testing.T) {
	t.Run("stale pending jobs are re-published", func(t *testing.T) {
		q := new(mocks.MockQueue)
		jobs := new(mocks.MockJobRepository)
		stale := []*models.GenerationJob{
			makeJob(models.JobTypeImage, `{}`),
			makeJob(models.JobTypeAudio, `{}`),
		}
		done := make(chan struct{})

		jobs.On("FindStalePending", mock.Anything, 10*time.Minute, 100).Return(stale, nil)
		q.On("Push", mock.Anything, mock.MatchedBy(func(message string) bool {
			return strings.Contains(message, stale[0].ID.String())
		})).Return(nil).Once()
		q.On("Push", mock.Anything, mock.MatchedBy(func(message string) bool {
			return strings.Contains(message, stale[1].ID.String())
		})).Return(nil).Once().
			Run(func(mock.Arguments) { close(done) })
		q.On("Push", mock.Anything, mock.Anything).Return(nil)

		r := worker.NewReconciler(jobs, q, 10*time.Millisecond, 10*time.Minute, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		finished := make(chan struct{})
		go func() {
			r.Run(ctx)
			close(finished)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("reconciler did not push stale jobs in time")
		}
		cancel()
		<-finished
	})

	t.Run("scan error skips push", func(t *testing.T) {
		q := new(mocks.MockQueue)
		jobs := new(mocks.MockJobRepository)
		done := make(chan struct{})

		jobs.On("FindStalePending", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("db down")).
			Run(func(mock.Arguments) {
				select {
				case <-done:
				default:
					close(done)
				}
			})

		r := worker.NewReconciler(jobs, q, 10*time.Millisecond, 10*time.Minute, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		finished := make(chan struct{})
		go func() {
			r.Run(ctx)
			close(finished)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("reconciler never scanned")
		}
		cancel()
		<-finished

		q.AssertNotCalled(t, "Push", mock.Anything, mock.Anything)
	})
}
