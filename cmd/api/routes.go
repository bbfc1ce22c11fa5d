package main

import (
	"github.com/gin-gonic/gin"

	"github.com/osei-labs/schoolmate-api/internal/handler"
	"github.com/osei-labs/schoolmate-api/internal/middleware"
	"github.com/osei-labs/schoolmate-api/internal/models"
	"github.com/osei-labs/schoolmate-api/internal/service"
)

type routeDeps struct {
	auth        *service.AuthService
	authHandler *handler.AuthHandler
	users       *handler.UserHandler
	years       *handler.AcademicYearHandler
	terms       *handler.TermHandler
	subjects    *handler.SubjectHandler
	classes     *handler.ClassHandler
	assignments *handler.ClassSubjectHandler
	results     *handler.ResultHandler
	analytics   *handler.AnalyticsHandler
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	api.POST("/auth/login", d.authHandler.Login)
	api.POST("/auth/refresh", d.authHandler.Refresh)

	authed := api.Group("", middleware.JWT(d.auth))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	auth := authed.Group("/auth")
	{
		auth.POST("/logout", d.authHandler.Logout)
		auth.POST("/change-password", d.authHandler.ChangePassword)
		auth.GET("/me", d.authHandler.Me)
	}

	users := authed.Group("/users")
	{
		users.GET("", adminOnly, d.users.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), d.users.Get)
		users.POST("", adminOnly, d.users.Create)
		users.PUT("/:id", adminOnly, d.users.Update)
		users.DELETE("/:id", adminOnly, d.users.Deactivate)
	}

	years := authed.Group("/academic-years")
	{
		years.GET("", d.years.List)
		years.GET("/current", d.years.GetCurrent)
		years.GET("/:id", d.years.Get)
		years.POST("", adminOnly, d.years.Create)
		years.PUT("/:id", adminOnly, d.years.Update)
		years.POST("/:id/set-current", adminOnly, d.years.SetCurrent)
		years.DELETE("/:id", adminOnly, d.years.Delete)
	}

	terms := authed.Group("/terms")
	{
		terms.GET("", d.terms.List)
		terms.GET("/current", d.terms.GetCurrent)
		terms.GET("/:id", d.terms.Get)
		terms.POST("", adminOnly, d.terms.Create)
		terms.PUT("/:id", adminOnly, d.terms.Update)
		terms.POST("/:id/set-current", adminOnly, d.terms.SetCurrent)
		terms.DELETE("/:id", adminOnly, d.terms.Delete)
	}

	subjects := authed.Group("/subjects")
	{
		subjects.GET("", d.subjects.List)
		subjects.GET("/:id", d.subjects.Get)
		subjects.POST("", adminOnly, d.subjects.Create)
		subjects.PUT("/:id", adminOnly, d.subjects.Update)
		subjects.DELETE("/:id", adminOnly, d.subjects.Delete)
	}

	classes := authed.Group("/classes")
	{
		classes.GET("", d.classes.List)
		classes.GET("/:id", d.classes.Get)
		classes.GET("/:id/subjects", d.assignments.ListByClass)
		classes.POST("", adminOnly, d.classes.Create)
		classes.PUT("/:id", adminOnly, d.classes.Update)
		classes.DELETE("/:id", adminOnly, d.classes.Delete)
	}

	authed.GET("/teachers/:id/assignments", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), "SELF"), d.assignments.ListByTeacher)

	classSubjects := authed.Group("/class-subjects")
	{
		classSubjects.POST("", adminOnly, d.assignments.Assign)
		classSubjects.PUT("/:id/teacher", adminOnly, d.assignments.SetTeacher)
		classSubjects.DELETE("/:id", adminOnly, d.assignments.Delete)
	}

	results := authed.Group("/results")
	{
		results.GET("", staffOnly, d.results.List)
		results.GET("/me", d.results.MyResults)
		results.GET("/export", staffOnly, d.results.Export)
		results.GET("/:id", d.results.Get)
		results.POST("", staffOnly, d.results.Upload)
		results.POST("/bulk", staffOnly, d.results.BulkUpload)
		results.POST("/bulk-publish", staffOnly, d.results.BulkPublish)
		results.POST("/bulk-unpublish", staffOnly, d.results.BulkUnpublish)
		results.POST("/:id/publish", staffOnly, d.results.Publish)
		results.POST("/:id/unpublish", staffOnly, d.results.Unpublish)
		results.DELETE("/:id", adminOnly, d.results.Delete)
	}

	authed.GET("/analytics/results", staffOnly, d.analytics.Analysis)
}
