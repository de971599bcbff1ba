package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/cache"
	"github.com/SAP-F-2025/learning-progress-service/internal/models"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"
)

// testLogger swallows output so test runs stay quiet.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func floatPtr(v float64) *float64 { return &v }
func uintPtr(v uint) *uint        { return &v }
func timePtr(v time.Time) *time.Time {
	return &v
}

// MockProgressRepository is a mock implementation of ProgressRepository
type MockProgressRepository struct {
	mock.Mock
}

func (m *MockProgressRepository) GetByID(ctx context.Context, id uint) (*models.CourseProgress, error) {
	args := m.Called(ctx, id)
	progress, _ := args.Get(0).(*models.CourseProgress)
	return progress, args.Error(1)
}

func (m *MockProgressRepository) GetByUserAndCourse(ctx context.Context, userID string, courseID uint) (*models.CourseProgress, error) {
	args := m.Called(ctx, userID, courseID)
	progress, _ := args.Get(0).(*models.CourseProgress)
	return progress, args.Error(1)
}

func (m *MockProgressRepository) GetOrCreate(ctx context.Context, userID string, courseID uint) (*models.CourseProgress, error) {
	args := m.Called(ctx, userID, courseID)
	progress, _ := args.Get(0).(*models.CourseProgress)
	return progress, args.Error(1)
}

func (m *MockProgressRepository) GetWithDetails(ctx context.Context, userID string, courseID uint) (*models.CourseProgress, error) {
	args := m.Called(ctx, userID, courseID)
	progress, _ := args.Get(0).(*models.CourseProgress)
	return progress, args.Error(1)
}

func (m *MockProgressRepository) ListByUser(ctx context.Context, userID string, filters repositories.ProgressFilters) ([]*models.CourseProgress, int64, error) {
	args := m.Called(ctx, userID, filters)
	list, _ := args.Get(0).([]*models.CourseProgress)
	total, _ := args.Get(1).(int64)
	return list, total, args.Error(2)
}

func (m *MockProgressRepository) Save(ctx context.Context, progress *models.CourseProgress, change repositories.ProgressChange) error {
	args := m.Called(ctx, progress, change)
	return args.Error(0)
}

func (m *MockProgressRepository) UpdateCursor(ctx context.Context, id uint, lessonID, sectionID string, positionSeconds int, accessedAt time.Time) error {
	args := m.Called(ctx, id, lessonID, sectionID, positionSeconds, accessedAt)
	return args.Error(0)
}

func (m *MockProgressRepository) UpdateStudyGoal(ctx context.Context, id uint, goal models.StudyGoal) error {
	args := m.Called(ctx, id, goal)
	return args.Error(0)
}

func (m *MockProgressRepository) AddNote(ctx context.Context, note *models.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *MockProgressRepository) AddBookmark(ctx context.Context, bookmark *models.Bookmark) error {
	args := m.Called(ctx, bookmark)
	return args.Error(0)
}

func (m *MockProgressRepository) GetLearnerStats(ctx context.Context, userID string) (*repositories.LearnerStats, error) {
	args := m.Called(ctx, userID)
	stats, _ := args.Get(0).(*repositories.LearnerStats)
	return stats, args.Error(1)
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) GetOpen(ctx context.Context, userID string, courseID uint, lessonID string) (*models.LearningSession, error) {
	args := m.Called(ctx, userID, courseID, lessonID)
	session, _ := args.Get(0).(*models.LearningSession)
	return session, args.Error(1)
}

func (m *MockSessionRepository) GetOrCreateOpen(ctx context.Context, userID string, courseID uint, lessonID string, startedAt time.Time) (*models.LearningSession, bool, error) {
	args := m.Called(ctx, userID, courseID, lessonID, startedAt)
	session, _ := args.Get(0).(*models.LearningSession)
	return session, args.Bool(1), args.Error(2)
}

func (m *MockSessionRepository) AddInteraction(ctx context.Context, interaction *models.Interaction) error {
	args := m.Called(ctx, interaction)
	return args.Error(0)
}

func (m *MockSessionRepository) UpdateVideoProgress(ctx context.Context, id uint, percent float64) error {
	args := m.Called(ctx, id, percent)
	return args.Error(0)
}

func (m *MockSessionRepository) Close(ctx context.Context, id uint, endedAt time.Time, durationSeconds int) error {
	args := m.Called(ctx, id, endedAt, durationSeconds)
	return args.Error(0)
}

func (m *MockSessionRepository) ListInWindow(ctx context.Context, userID string, filters repositories.SessionFilters) ([]*models.LearningSession, error) {
	args := m.Called(ctx, userID, filters)
	sessions, _ := args.Get(0).([]*models.LearningSession)
	return sessions, args.Error(1)
}

func (m *MockSessionRepository) ListIdleOpen(ctx context.Context, idleSince time.Time, limit int) ([]*models.LearningSession, error) {
	args := m.Called(ctx, idleSince, limit)
	sessions, _ := args.Get(0).([]*models.LearningSession)
	return sessions, args.Error(1)
}

// MockAchievementRepository is a mock implementation of AchievementRepository
type MockAchievementRepository struct {
	mock.Mock
}

func (m *MockAchievementRepository) Create(ctx context.Context, achievement *models.Achievement) error {
	args := m.Called(ctx, achievement)
	return args.Error(0)
}

func (m *MockAchievementRepository) GetByUser(ctx context.Context, userID string) ([]*models.Achievement, error) {
	args := m.Called(ctx, userID)
	achievements, _ := args.Get(0).([]*models.Achievement)
	return achievements, args.Error(1)
}

func (m *MockAchievementRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	count, _ := args.Get(0).(int64)
	return count, args.Error(1)
}

// MockCourseRepository is a mock implementation of CourseRepository
type MockCourseRepository struct {
	mock.Mock
}

func (m *MockCourseRepository) Create(ctx context.Context, course *models.Course) error {
	args := m.Called(ctx, course)
	return args.Error(0)
}

func (m *MockCourseRepository) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	args := m.Called(ctx, id)
	course, _ := args.Get(0).(*models.Course)
	return course, args.Error(1)
}

func (m *MockCourseRepository) TotalLessons(ctx context.Context, courseID uint) (int, error) {
	args := m.Called(ctx, courseID)
	return args.Int(0), args.Error(1)
}

// MockReportRepository is a mock implementation of ReportRepository
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*models.ReportJob)
	return job, args.Error(1)
}

func (m *MockReportRepository) ListByUser(ctx context.Context, userID string, filters repositories.ReportJobFilters) ([]*models.ReportJob, int64, error) {
	args := m.Called(ctx, userID, filters)
	jobs, _ := args.Get(0).([]*models.ReportJob)
	total, _ := args.Get(1).(int64)
	return jobs, total, args.Error(2)
}

func (m *MockReportRepository) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, startedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockReportRepository) Complete(ctx context.Context, id string, result datatypes.JSON, filePath string, completedAt time.Time) error {
	args := m.Called(ctx, id, result, filePath, completedAt)
	return args.Error(0)
}

func (m *MockReportRepository) Fail(ctx context.Context, id string, message string, completedAt time.Time) error {
	args := m.Called(ctx, id, message, completedAt)
	return args.Error(0)
}

// MockRepository aggregates the per-entity mocks behind the Repository facade.
type MockRepository struct {
	progress    *MockProgressRepository
	session     *MockSessionRepository
	achievement *MockAchievementRepository
	course      *MockCourseRepository
	report      *MockReportRepository
}

func newMockRepository() *MockRepository {
	return &MockRepository{
		progress:    &MockProgressRepository{},
		session:     &MockSessionRepository{},
		achievement: &MockAchievementRepository{},
		course:      &MockCourseRepository{},
		report:      &MockReportRepository{},
	}
}

func (m *MockRepository) Progress() repositories.ProgressRepository       { return m.progress }
func (m *MockRepository) Session() repositories.SessionRepository         { return m.session }
func (m *MockRepository) Achievement() repositories.AchievementRepository { return m.achievement }
func (m *MockRepository) Course() repositories.CourseRepository           { return m.course }
func (m *MockRepository) Report() repositories.ReportRepository           { return m.report }

// fakeCache is an in-memory CacheService so analytics tests can observe
// caching and invalidation without Redis. DeletePattern only honors the
// trailing-star patterns the service actually emits.
type fakeCache struct {
	mu              sync.Mutex
	entries         map[string][]byte
	deletedPatterns []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = payload
	return nil
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	payload, ok := f.entries[key]
	f.mu.Unlock()
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *fakeCache) DeletePattern(ctx context.Context, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedPatterns = append(f.deletedPatterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.entries {
		if strings.HasPrefix(key, prefix) {
			delete(f.entries, key)
		}
	}
	return nil
}

func (f *fakeCache) patterns() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletedPatterns...)
}
