package services

import (
	"log/slog"

	"github.com/SAP-F-2025/learning-progress-service/internal/cache"
	"github.com/SAP-F-2025/learning-progress-service/internal/events"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
)

// ServiceManager aggregates the service layer behind one facade, mirroring
// repositories.Repository on the persistence side. Handlers depend on this
// interface only.
type ServiceManager interface {
	Progress() ProgressService
	Analytics() AnalyticsService
	Achievements() AchievementService
	Reports() ReportService
}

type serviceManager struct {
	progress     ProgressService
	analytics    AnalyticsService
	achievements AchievementService
	reports      ReportService
}

func NewServiceManager(
	repo repositories.Repository,
	logger *slog.Logger,
	validator *utils.Validator,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	insights InsightGenerator,
	clock utils.Clock,
	exportDir string,
) ServiceManager {
	if clock == nil {
		clock = utils.NewSystemClock()
	}

	achievements := NewAchievementService(repo, logger, publisher, clock)
	tracker := NewProgressTracker(clock)
	analytics := NewAnalyticsService(repo, logger, validator, cacheService, clock)

	return &serviceManager{
		progress:     NewProgressService(repo, logger, validator, tracker, achievements, publisher),
		analytics:    analytics,
		achievements: achievements,
		reports:      NewReportService(repo, logger, validator, analytics, insights, clock, exportDir),
	}
}

func (m *serviceManager) Progress() ProgressService { return m.progress }

func (m *serviceManager) Analytics() AnalyticsService { return m.analytics }

func (m *serviceManager) Achievements() AchievementService { return m.achievements }

func (m *serviceManager) Reports() ReportService { return m.reports }
