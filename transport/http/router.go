package http

import "github.com/gin-gonic/gin"

// SetupRouter sets up the Gin router for the authentication flow.
func SetupRouter(handlers *AuthHandlers) *gin.Engine {
	router := gin.Default()
	router.Use(NoCache())

	router.GET("/login", handlers.Login)
	router.POST("/callback", handlers.Callback)
	router.GET("/auth", handlers.Poll)
	router.GET("/user", handlers.User)
	router.GET("/sign_out", handlers.SignOut)

	return router
}
