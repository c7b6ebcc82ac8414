package server

import (
	"github.com/denesterov/geolog/internal/config"
	"github.com/denesterov/geolog/internal/render"
	"github.com/denesterov/geolog/internal/session"
	"github.com/denesterov/geolog/internal/share"
	"github.com/denesterov/geolog/internal/track"
	"github.com/denesterov/geolog/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App   *fiber.App
	Cfg   config.Config
	DB    *pgxpool.Pool
	Redis *redis.Client
	Jobs  *session.Jobs
	Maps  *render.Artifacts
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, maps *render.Artifacts) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	var jobs *session.Jobs
	if redisClient != nil {
		jobs = session.NewJobs(redisClient)
	}

	s := &Server{
		App:   app,
		Cfg:   cfg,
		DB:    db,
		Redis: redisClient,
		Jobs:  jobs,
		Maps:  maps,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	store := session.NewStore(s.DB)
	tracks := track.NewService(store)
	engine := tracking.NewEngine(tracking.ThresholdsFromConfig(s.Cfg))

	tracking.RegisterRoutes(s.App, tracking.NewService(store, s.Jobs, engine))
	track.RegisterRoutes(s.App, tracks)
	share.RegisterRoutes(s.App, share.NewService(s.Cfg.ShareSecret), tracks)

	// Map routes only make sense with a job queue and artifact dir behind them.
	if s.Jobs != nil && s.Maps != nil {
		render.RegisterRoutes(s.App, s.Jobs, s.Maps)
	}
}
