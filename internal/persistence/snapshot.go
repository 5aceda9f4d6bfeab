package persistence

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/noah-isme/course-reg-api/internal/graph"
	"github.com/noah-isme/course-reg-api/internal/models"
)

// Entity kinds, in load order.
const (
	KindUsers         = "users"
	KindStudents      = "students"
	KindCourses       = "courses"
	KindIndexes       = "indexes"
	KindSchedules     = "schedules"
	KindRegistrations = "registrations"
)

// Kinds lists every kind in the order it is loaded.
var Kinds = []string{KindUsers, KindStudents, KindCourses, KindIndexes, KindSchedules, KindRegistrations}

// LoadReport counts loaded and skipped rows per kind.
type LoadReport struct {
	Loaded  map[string]int `json:"loaded"`
	Skipped map[string]int `json:"skipped"`
}

// Snapshotter moves the whole graph to and from a RowStore.
type Snapshotter struct {
	rows   RowStore
	logger *zap.Logger
}

// NewSnapshotter builds a snapshotter over rows.
func NewSnapshotter(rows RowStore, logger *zap.Logger) *Snapshotter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snapshotter{rows: rows, logger: logger}
}

// Load fills g from the row store. Rows that cannot be parsed or whose
// references are missing are skipped and counted.
func (s *Snapshotter) Load(ctx context.Context, g *graph.Graph) (LoadReport, error) {
	report := LoadReport{Loaded: map[string]int{}, Skipped: map[string]int{}}

	if err := loadKind(ctx, s, &report, KindUsers, UserConverter{}, g.AddUser); err != nil {
		return report, err
	}
	if err := loadKind(ctx, s, &report, KindStudents, StudentConverter{}, g.AddStudent); err != nil {
		return report, err
	}
	if err := loadKind(ctx, s, &report, KindCourses, CourseConverter{}, g.AddCourse); err != nil {
		return report, err
	}

	var indexes []*models.CourseIndex
	if err := loadKind(ctx, s, &report, KindIndexes, IndexConverter{}, func(i *models.CourseIndex) error {
		indexes = append(indexes, i)
		return nil
	}); err != nil {
		return report, err
	}
	byNumber := make(map[string]*models.CourseIndex, len(indexes))
	for _, i := range indexes {
		byNumber[i.Number] = i
	}
	if err := loadKind(ctx, s, &report, KindSchedules, ScheduleConverter{}, func(sc IndexSchedule) error {
		index, ok := byNumber[sc.IndexNumber]
		if !ok {
			return fmt.Errorf("index %s not found", sc.IndexNumber)
		}
		index.Schedules = append(index.Schedules, sc.Schedule)
		return nil
	}); err != nil {
		return report, err
	}
	for _, i := range indexes {
		if err := g.AddIndex(i); err != nil {
			report.Loaded[KindIndexes]--
			report.Skipped[KindIndexes]++
			s.logger.Warn("skip index row", zap.String("index", i.Number), zap.Error(err))
		}
	}

	if err := loadKind(ctx, s, &report, KindRegistrations, RegistrationConverter{}, g.AddRegistration); err != nil {
		return report, err
	}

	s.logger.Info("snapshot loaded", zap.Any("loaded", report.Loaded), zap.Any("skipped", report.Skipped))
	return report, nil
}

func loadKind[V any](ctx context.Context, s *Snapshotter, report *LoadReport, kind string, conv Converter[V], add func(V) error) error {
	rows, err := s.rows.ReadRows(ctx, kind)
	if err != nil {
		return fmt.Errorf("load %s: %w", kind, err)
	}
	for n, row := range rows {
		item, ok := conv.FromRow(row)
		if !ok {
			report.Skipped[kind]++
			s.logger.Warn("skip unreadable row", zap.String("kind", kind), zap.Int("row", n))
			continue
		}
		if err := add(item); err != nil {
			report.Skipped[kind]++
			s.logger.Warn("skip row", zap.String("kind", kind), zap.Int("row", n), zap.Error(err))
			continue
		}
		report.Loaded[kind]++
	}
	return nil
}

// Save writes every store of g. Registrations are written in allocation
// order so that reloading preserves waitlist positions.
func (s *Snapshotter) Save(ctx context.Context, g *graph.Graph) error {
	if err := saveKind(ctx, s, KindUsers, UserConverter{}, g.Users.Items()); err != nil {
		return err
	}
	if err := saveKind(ctx, s, KindStudents, StudentConverter{}, g.Students.Items()); err != nil {
		return err
	}
	if err := saveKind(ctx, s, KindCourses, CourseConverter{}, g.Courses.Items()); err != nil {
		return err
	}
	indexes := g.Indexes.Items()
	if err := saveKind(ctx, s, KindIndexes, IndexConverter{}, indexes); err != nil {
		return err
	}
	var schedules []IndexSchedule
	for _, i := range indexes {
		for _, sc := range i.Schedules {
			schedules = append(schedules, IndexSchedule{IndexNumber: i.Number, Schedule: sc})
		}
	}
	if err := saveKind(ctx, s, KindSchedules, ScheduleConverter{}, schedules); err != nil {
		return err
	}
	regs := g.Registrations.Items()
	slices.SortStableFunc(regs, models.CompareRegistrations)
	if err := saveKind(ctx, s, KindRegistrations, RegistrationConverter{}, regs); err != nil {
		return err
	}
	s.logger.Info("snapshot saved", zap.Any("stats", g.Stats()))
	return nil
}

func saveKind[V any](ctx context.Context, s *Snapshotter, kind string, conv Converter[V], items []V) error {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		if row, ok := conv.ToRow(item); ok {
			rows = append(rows, row)
		}
	}
	if err := s.rows.WriteRows(ctx, kind, conv.Header(), rows); err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}
	return nil
}
