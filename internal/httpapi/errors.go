package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"horse.fit/polyglot/internal/batch"
	"horse.fit/polyglot/internal/dataimport"
)

// respondError maps domain errors to jsend responses. Unknown errors are
// logged and reported as a 500 with message.
func (s *Server) respondError(c echo.Context, err error, message string) error {
	switch {
	case errors.Is(err, batch.ErrJobNotFound),
		errors.Is(err, dataimport.ErrImportNotFound),
		errors.Is(err, dataimport.ErrLanguageNotFound),
		errors.Is(err, dataimport.ErrTranslationNotFound):
		return failNotFound(c, err.Error())
	case errors.Is(err, batch.ErrValidation),
		errors.Is(err, dataimport.ErrValidation):
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, batch.ErrInvalidState),
		errors.Is(err, batch.ErrJobNotRunning),
		errors.Is(err, dataimport.ErrLanguageNotSelected),
		errors.Is(err, dataimport.ErrConflictNotResolved):
		return fail(c, http.StatusConflict, err.Error(), nil)
	}

	s.logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg(message)
	return internalError(c, message)
}
