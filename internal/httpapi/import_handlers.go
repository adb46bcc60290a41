package httpapi

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/polyglot/internal/dataimport"
)

func (s *Server) handleAddFiles(c echo.Context) error {
	p := principalFromContext(c)
	form, err := c.MultipartForm()
	if err != nil {
		return failValidation(c, map[string]string{"files": "expected multipart form data"})
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return failValidation(c, map[string]string{"files": "at least one file is required"})
	}

	files := make([]dataimport.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		content, err := readUpload(fh)
		if err != nil {
			return failValidation(c, map[string]string{"files": err.Error()})
		}
		files = append(files, dataimport.UploadedFile{Name: uploadName(fh), Content: content})
	}

	view, err := s.imports.AddFiles(c.Request().Context(), p.ProjectID, p.UserID, files)
	if err != nil {
		return s.respondError(c, err, "Failed to add import files")
	}
	return success(c, view)
}

func (s *Server) handleGetImport(c echo.Context) error {
	view, err := s.callerImport(c)
	if err != nil {
		return s.respondError(c, err, "Failed to load import")
	}
	return success(c, view)
}

func (s *Server) handleDeleteImport(c echo.Context) error {
	view, err := s.callerImport(c)
	if err != nil {
		return s.respondError(c, err, "Failed to load import")
	}
	if err := s.imports.DeleteImport(c.Request().Context(), view.ID); err != nil {
		return s.respondError(c, err, "Failed to delete import")
	}
	return success(c, map[string]any{"deleted": view.ID})
}

func (s *Server) handleApplyImport(c echo.Context) error {
	mode, err := dataimport.ParseForceMode(c.QueryParam("forceMode"))
	if err != nil {
		return failValidation(c, map[string]string{"forceMode": err.Error()})
	}
	view, err := s.callerImport(c)
	if err != nil {
		return s.respondError(c, err, "Failed to load import")
	}
	result, err := s.imports.Import(c.Request().Context(), view.ID, mode)
	if err != nil {
		return s.respondError(c, err, "Failed to apply import")
	}
	return success(c, result)
}

func (s *Server) handleResolveAll(c echo.Context) error {
	view, err := s.callerImport(c)
	if err != nil {
		return s.respondError(c, err, "Failed to load import")
	}
	n, err := s.imports.SetAllResolved(c.Request().Context(), view.ID)
	if err != nil {
		return s.respondError(c, err, "Failed to resolve conflicts")
	}
	return success(c, map[string]any{"resolved": n})
}

func (s *Server) handleLanguageTranslations(c echo.Context) error {
	lang, err := s.callerLanguage(c)
	if err != nil {
		return s.respondError(c, err, "Failed to load import language")
	}
	rows, err := s.imports.FindTranslations(c.Request().Context(), lang.ID)
	if err != nil {
		return s.respondError(c, err, "Failed to load import translations")
	}
	return success(c, map[string]any{"language": lang, "items": rows})
}

func (s *Server) handleSelectExisting(c echo.Context) error {
	existingID, err := parseIDParam(c, "existingID")
	if err != nil {
		return failValidation(c, map[string]string{"existingID": err.Error()})
	}
	lang, err := s.callerLanguage(c)
	if err != nil {
		return s.respondError(c, err, "Failed to load import language")
	}
	updated, err := s.imports.SelectExistingLanguage(c.Request().Context(), lang.ID, existingID)
	if err != nil {
		return s.respondError(c, err, "Failed to select existing language")
	}
	return success(c, updated)
}

func (s *Server) handleResetExisting(c echo.Context) error {
	lang, err := s.callerLanguage(c)
	if err != nil {
		return s.respondError(c, err, "Failed to load import language")
	}
	updated, err := s.imports.ResetExistingLanguage(c.Request().Context(), lang.ID)
	if err != nil {
		return s.respondError(c, err, "Failed to reset existing language")
	}
	return success(c, updated)
}

func (s *Server) handleDeleteLanguage(c echo.Context) error {
	lang, err := s.callerLanguage(c)
	if err != nil {
		return s.respondError(c, err, "Failed to load import language")
	}
	if err := s.imports.DeleteLanguage(c.Request().Context(), lang.ID); err != nil {
		return s.respondError(c, err, "Failed to delete import language")
	}
	return success(c, map[string]any{"deleted": lang.ID})
}

func (s *Server) handleResolveTranslation(c echo.Context) error {
	var override bool
	switch c.Param("mode") {
	case "set-override":
		override = true
	case "set-keep-existing":
		override = false
	default:
		return failValidation(c, map[string]string{"mode": "must be set-override or set-keep-existing"})
	}

	translationID, err := parseIDParam(c, "translationID")
	if err != nil {
		return failValidation(c, map[string]string{"translationID": err.Error()})
	}
	view, err := s.callerImport(c)
	if err != nil {
		return s.respondError(c, err, "Failed to load import")
	}
	row, err := s.imports.GetTranslation(c.Request().Context(), translationID)
	if err != nil {
		return s.respondError(c, err, "Failed to load import translation")
	}
	if row.ImportID != view.ID {
		return failNotFound(c, fmt.Sprintf("%v: %d", dataimport.ErrTranslationNotFound, translationID))
	}

	resolved, err := s.imports.ResolveTranslation(c.Request().Context(), translationID, override)
	if err != nil {
		return s.respondError(c, err, "Failed to resolve import translation")
	}
	return success(c, resolved)
}

// callerImport returns the import session of the caller in the path project.
func (s *Server) callerImport(c echo.Context) (dataimport.ImportView, error) {
	p := principalFromContext(c)
	view, err := s.imports.Find(c.Request().Context(), p.ProjectID, p.UserID)
	if err != nil {
		return dataimport.ImportView{}, err
	}
	if view == nil {
		return dataimport.ImportView{}, fmt.Errorf("%w: project %d", dataimport.ErrImportNotFound, p.ProjectID)
	}
	return *view, nil
}

// callerLanguage loads the path's import language, hiding languages that
// belong to another caller's import.
func (s *Server) callerLanguage(c echo.Context) (dataimport.LanguageView, error) {
	languageID, err := parseIDParam(c, "languageID")
	if err != nil {
		return dataimport.LanguageView{}, fmt.Errorf("%w: languageID %v", dataimport.ErrValidation, err)
	}
	view, err := s.callerImport(c)
	if err != nil {
		return dataimport.LanguageView{}, err
	}
	lang, err := s.imports.FindLanguage(c.Request().Context(), languageID)
	if err != nil {
		return dataimport.LanguageView{}, err
	}
	if lang.ImportID != view.ID {
		return dataimport.LanguageView{}, fmt.Errorf("%w: import language %d", dataimport.ErrLanguageNotFound, languageID)
	}
	return lang, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return content, nil
}

// uploadName keeps the directories of the submitted file name, which
// FileHeader.Filename strips; they become the import namespace.
func uploadName(fh *multipart.FileHeader) string {
	if _, params, err := mime.ParseMediaType(fh.Header.Get("Content-Disposition")); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "/")
		}
	}
	return fh.Filename
}
