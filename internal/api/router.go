package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/driftlinehq/driftline-site/internal/app"
	iauth "github.com/driftlinehq/driftline-site/internal/auth"
	"github.com/driftlinehq/driftline-site/internal/handlers"
	"github.com/driftlinehq/driftline-site/internal/middleware"
	"github.com/driftlinehq/driftline-site/internal/services"
)

// Dependencies collects the services the router wires into handlers.
type Dependencies struct {
	Credentials *iauth.CredentialService
	Sessions    *iauth.SessionService
	Resets      *services.PasswordResetService
	Subscribers *services.SubscriberService
	Newsletter  *services.NewsletterService
	Contacts    *services.ContactService
	Blog        *services.BlogService
	Content     *services.ContentService
}

func (d Dependencies) validate() error {
	switch {
	case d.Credentials == nil:
		return fmt.Errorf("credential service must be provided")
	case d.Sessions == nil:
		return fmt.Errorf("session service must be provided")
	case d.Resets == nil:
		return fmt.Errorf("password reset service must be provided")
	case d.Subscribers == nil:
		return fmt.Errorf("subscriber service must be provided")
	case d.Newsletter == nil:
		return fmt.Errorf("newsletter service must be provided")
	case d.Contacts == nil:
		return fmt.Errorf("contact service must be provided")
	case d.Blog == nil:
		return fmt.Errorf("blog service must be provided")
	case d.Content == nil:
		return fmt.Errorf("content service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	if cfg.Server.CSRF.Enabled {
		r.Use(middleware.CSRF())
	}
	r.Use(middleware.RateLimit(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))

	r.NoRoute(middleware.NotFoundHandler)

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(db))
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(db, deps.Credentials, deps.Sessions, deps.Resets)
	newsletterHandler := handlers.NewNewsletterHandler(deps.Subscribers, deps.Newsletter)
	contactHandler := handlers.NewContactHandler(deps.Contacts)
	blogHandler := handlers.NewBlogHandler(deps.Blog)
	contentHandler := handlers.NewContentHandler(deps.Content)

	// Public site routes
	api := r.Group("/api")
	{
		api.GET("/blog/posts", blogHandler.ListPublished)
		api.GET("/blog/posts/:slug", blogHandler.GetBySlug)
		api.GET("/case-studies", contentHandler.ListCaseStudies)
		api.GET("/case-studies/:slug", contentHandler.GetCaseStudy)
		api.GET("/testimonials", contentHandler.ListTestimonials)

		api.POST("/newsletter/subscribe", newsletterHandler.Subscribe)
		api.POST("/newsletter/unsubscribe", newsletterHandler.Unsubscribe)
		api.POST("/contact/submit", contactHandler.Submit)
	}

	// Public admin auth routes
	admin := api.Group("/admin")
	{
		admin.POST("/login", authHandler.Login)
		admin.POST("/request-password-reset", authHandler.RequestPasswordReset)
		admin.POST("/reset-password", authHandler.ResetPassword)
	}

	// Session-gated admin routes
	protected := admin.Group("")
	protected.Use(middleware.SessionAuth(deps.Sessions))
	{
		protected.POST("/logout", authHandler.Logout)
		protected.GET("/me", authHandler.Me)
		protected.POST("/change-password", authHandler.ChangePassword)

		protected.GET("/subscribers", newsletterHandler.ListSubscribers)
		protected.POST("/newsletter/send", newsletterHandler.Send)
		protected.GET("/newsletter/history", newsletterHandler.History)

		protected.GET("/leads", contactHandler.List)
		protected.PATCH("/leads/:id", contactHandler.UpdateStatus)

		protected.GET("/blog/posts", blogHandler.ListAll)
		protected.POST("/blog/posts", blogHandler.Create)
		protected.PUT("/blog/posts/:id", blogHandler.Update)
		protected.DELETE("/blog/posts/:id", blogHandler.Delete)
	}

	return r, nil
}
