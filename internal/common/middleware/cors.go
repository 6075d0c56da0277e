package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

// CORS разрешает все источники и заголовки и открывает браузеру
// заголовок сессии.
func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowHeaders:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders: []string{SessionHeader},
	})
}

// SessionHeader передаёт токен сессии холста в ответе, который её создаёт.
const SessionHeader = "X-Session-Id"
