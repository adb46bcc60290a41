package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const headerUserID = "X-User-Id"

type principal struct {
	UserID    int64
	ProjectID int64
}

// requireUser resolves the caller from the X-User-Id header set by the
// gateway in front of the API, and the project from the path.
func (s *Server) requireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(headerUserID))
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				return fail(c, http.StatusUnauthorized, "Missing or invalid "+headerUserID+" header", nil)
			}
			projectID, err := parseIDParam(c, "projectID")
			if err != nil {
				return failValidation(c, map[string]string{"projectID": err.Error()})
			}

			c.Set("polyglot.principal", principal{UserID: userID, ProjectID: projectID})
			return next(c)
		}
	}
}

func principalFromContext(c echo.Context) principal {
	p, _ := c.Get("polyglot.principal").(principal)
	return p
}
