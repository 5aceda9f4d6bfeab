package router

import (
	"sync"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-reg-api/api/swagger"
	"github.com/noah-isme/course-reg-api/internal/handler"
	"github.com/noah-isme/course-reg-api/internal/middleware"
	"github.com/noah-isme/course-reg-api/internal/models"
	"github.com/noah-isme/course-reg-api/internal/service"
	"github.com/noah-isme/course-reg-api/pkg/config"
	"github.com/noah-isme/course-reg-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-reg-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-reg-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Auth         *handler.AuthHandler
	Course       *handler.CourseHandler
	Index        *handler.IndexHandler
	User         *handler.UserHandler
	Registration *handler.RegistrationHandler
	Notification *handler.NotificationHandler
	Metrics      *handler.MetricsHandler
}

// Options carries the cross-cutting pieces of the router.
type Options struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *service.MetricsService
	Tokens  *service.AuthService
	// GraphLock serialises every route that reads or mutates the
	// registration graph. AfterGraph runs while the lock is still held.
	GraphLock  sync.Locker
	AfterGraph func()
}

// New builds the gin engine with every route mounted.
func New(opts Options, h Handlers) *gin.Engine {
	cfg := opts.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	lock := opts.GraphLock
	if lock == nil {
		lock = &sync.Mutex{}
	}
	serialize := middleware.Serialize(lock, opts.AfterGraph)
	staff := middleware.RequireDomains(models.DomainStaff)
	audit := func(action, resource, idParam string) gin.HandlerFunc {
		return middleware.Audit(opts.Logger, action, resource, idParam)
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", serialize, h.Auth.Login)

	secured := api.Group("", middleware.JWT(opts.Tokens))
	secured.GET("/auth/me", h.Auth.Me)
	secured.GET("/me/notifications", h.Notification.Inbox)

	guarded := secured.Group("", serialize)

	courses := guarded.Group("/courses")
	courses.GET("", h.Course.List)
	courses.POST("", staff, audit("CREATE", "course", ""), h.Course.Create)
	courses.GET("/:code", h.Course.Get)
	courses.PUT("/:code", staff, audit("UPDATE", "course", "code"), h.Course.Update)
	courses.DELETE("/:code", staff, audit("DELETE", "course", "code"), h.Course.Delete)
	courses.PUT("/:code/rename", staff, audit("RENAME", "course", "code"), h.Course.Rename)
	courses.GET("/:code/indexes", h.Course.Indexes)
	courses.GET("/:code/registrations", staff, h.Course.Registrations)

	indexes := guarded.Group("/indexes")
	indexes.POST("", staff, audit("CREATE", "index", ""), h.Index.Create)
	indexes.GET("/:index", h.Index.Get)
	indexes.DELETE("/:index", staff, audit("DELETE", "index", "index"), h.Index.Delete)
	indexes.PUT("/:index/vacancy", staff, audit("UPDATE_VACANCY", "index", "index"), h.Index.Vacancy)
	indexes.PUT("/:index/rename", staff, audit("RENAME", "index", "index"), h.Index.Rename)
	indexes.POST("/:index/schedules", staff, audit("ADD_SCHEDULE", "index", "index"), h.Index.AddSchedule)
	indexes.GET("/:index/registrations", staff, h.Index.Registrations)
	indexes.GET("/:index/report", staff, h.Index.Report)

	guarded.GET("/students", staff, h.User.ListStudents)
	guarded.POST("/students", staff, audit("CREATE", "student", ""), h.User.CreateStudent)
	guarded.GET("/students/:username", middleware.RBAC(string(models.DomainStaff), middleware.Self), h.User.GetStudent)
	guarded.GET("/students/:username/registrations", middleware.RBAC(string(models.DomainStaff), middleware.Self), h.User.StudentRegistrations)
	guarded.POST("/staff", staff, audit("CREATE", "staff", ""), h.User.CreateStaff)
	guarded.PUT("/users/:username/rename", staff, audit("RENAME", "user", "username"), h.User.Rename)
	guarded.DELETE("/users/:username", staff, audit("DELETE", "user", "username"), h.User.Delete)

	registrations := guarded.Group("/registrations")
	registrations.POST("", h.Registration.Register)
	registrations.POST("/swap", h.Registration.Swap)
	registrations.DELETE("/:index", h.Registration.Drop)
	registrations.PUT("/:index/change", h.Registration.ChangeIndex)

	return r
}
