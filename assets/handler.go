package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"holodeck/logging"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ListCache caches serialized asset list pages. A miss is reported as any
// non-nil error. Get returns the generation a subsequent Set must use; a
// negative generation means the page must not be stored.
type ListCache interface {
	Get(ctx context.Context, skip, limit int) ([]byte, int64, error)
	Set(ctx context.Context, gen int64, skip, limit int, payload []byte) error
	Invalidate(ctx context.Context) error
}

// Module serves the Asset Store HTTP surface.
type Module struct {
	db    *gorm.DB
	blobs BlobStore
	cache ListCache
	log   *logging.Logger
}

type uploadForm struct {
	Name      string   `form:"name"`
	AssetType string   `form:"asset_type"`
	X         *float64 `form:"x"`
	Y         *float64 `form:"y"`
	Z         *float64 `form:"z"`
	RotationX *float64 `form:"rotation_x"`
	RotationY *float64 `form:"rotation_y"`
	RotationZ *float64 `form:"rotation_z"`
	ScaleX    *float64 `form:"scale_x"`
	ScaleY    *float64 `form:"scale_y"`
	ScaleZ    *float64 `form:"scale_z"`
}

// NewModule migrates the asset table and returns a module ready to Register.
// cache may be nil.
func NewModule(db *gorm.DB, blobs BlobStore, cache ListCache, log *logging.Logger) (*Module, error) {
	if db == nil {
		return nil, errors.New("assets: database is required")
	}
	if blobs == nil {
		return nil, errors.New("assets: blob storage is required")
	}
	if err := db.AutoMigrate(&Asset{}); err != nil {
		return nil, fmt.Errorf("assets: migrate tables: %w", err)
	}
	return &Module{db: db, blobs: blobs, cache: cache, log: logging.OrNop(log).With("component", "assets")}, nil
}

func (m *Module) Register(router gin.IRouter) {
	router.GET("/health", m.handleHealth)

	group := router.Group("/assets")
	group.GET("", m.handleList)
	group.POST("/upload", m.handleUpload)
	group.GET("/:id", m.handleGet)
	group.PUT("/:id", m.handleUpdate)
	group.DELETE("/:id", m.handleDelete)

	router.GET("/"+uploadPrefix+"/*filepath", m.handleServeFile)
}

func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

func (m *Module) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (m *Module) handleList(c *gin.Context) {
	skip, err := queryInt(c, "skip", 0)
	if err != nil || skip < 0 {
		detail(c, http.StatusUnprocessableEntity, "skip must be a non-negative integer")
		return
	}
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit < 0 {
		detail(c, http.StatusUnprocessableEntity, "limit must be a non-negative integer")
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx := c.Request.Context()
	gen := int64(-1)
	if m.cache != nil {
		payload, g, err := m.cache.Get(ctx, skip, limit)
		if err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
			return
		}
		gen = g
	}

	list := make([]Asset, 0)
	if err := m.db.WithContext(ctx).Order("id asc").Offset(skip).Limit(limit).Find(&list).Error; err != nil {
		m.log.Error("list assets failed", "error", err)
		detail(c, http.StatusInternalServerError, "failed to list assets")
		return
	}

	payload, err := json.Marshal(list)
	if err != nil {
		detail(c, http.StatusInternalServerError, "failed to encode assets")
		return
	}
	if m.cache != nil && gen >= 0 {
		if err := m.cache.Set(ctx, gen, skip, limit, payload); err != nil {
			m.log.Warn("cache asset list failed", "error", err)
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func (m *Module) handleGet(c *gin.Context) {
	asset, ok := m.assetByParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (m *Module) handleUpload(c *gin.Context) {
	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		detail(c, http.StatusUnprocessableEntity, "invalid form payload")
		return
	}

	name := strings.TrimSpace(form.Name)
	if name == "" {
		detail(c, http.StatusUnprocessableEntity, "name is required")
		return
	}
	assetType, err := ParseAssetType(form.AssetType)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "file is required")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		detail(c, http.StatusBadRequest, "invalid upload file")
		return
	}
	defer src.Close()

	ctx := c.Request.Context()
	filePath, err := Store(ctx, m.blobs, fileHeader.Filename, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidName):
			detail(c, http.StatusUnprocessableEntity, "invalid file name")
		case errors.Is(err, ErrTooLarge):
			detail(c, http.StatusRequestEntityTooLarge, err.Error())
		default:
			m.log.Error("store upload failed", "filename", fileHeader.Filename, "error", err)
			detail(c, http.StatusInternalServerError, fmt.Sprintf("Could not save file: %v", err))
		}
		return
	}

	asset := Asset{
		Name:      name,
		AssetType: assetType,
		FilePath:  filePath,
		X:         form.X,
		Y:         form.Y,
		Z:         form.Z,
		RotationX: form.RotationX,
		RotationY: form.RotationY,
		RotationZ: form.RotationZ,
		ScaleX:    orDefault(form.ScaleX, 1),
		ScaleY:    orDefault(form.ScaleY, 1),
		ScaleZ:    orDefault(form.ScaleZ, 1),
	}
	if err := m.db.WithContext(ctx).Create(&asset).Error; err != nil {
		if storedName, ok := NameFromFilePath(filePath); ok {
			_ = m.blobs.Remove(ctx, storedName)
		}
		m.log.Error("create asset failed", "name", name, "error", err)
		detail(c, http.StatusInternalServerError, "failed to create asset")
		return
	}

	m.invalidate(ctx)
	m.log.Info("asset uploaded", "asset_id", asset.ID, "asset_type", asset.AssetType, "file_path", asset.FilePath)
	c.JSON(http.StatusOK, asset)
}

func (m *Module) handleUpdate(c *gin.Context) {
	asset, ok := m.assetByParam(c)
	if !ok {
		return
	}

	var update Update
	if err := c.ShouldBindJSON(&update); err != nil {
		detail(c, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		detail(c, http.StatusUnprocessableEntity, "name cannot be empty")
		return
	}

	update.Apply(asset)
	ctx := c.Request.Context()
	if err := m.db.WithContext(ctx).Save(asset).Error; err != nil {
		m.log.Error("update asset failed", "asset_id", asset.ID, "error", err)
		detail(c, http.StatusInternalServerError, "failed to update asset")
		return
	}

	m.invalidate(ctx)
	c.JSON(http.StatusOK, asset)
}

func (m *Module) handleDelete(c *gin.Context) {
	asset, ok := m.assetByParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if name, ok := NameFromFilePath(asset.FilePath); ok {
		if err := m.blobs.Remove(ctx, name); err != nil && !errors.Is(err, ErrBlobNotFound) {
			m.log.Warn("remove stored file failed", "file_path", asset.FilePath, "error", err)
		}
	}

	if err := m.db.WithContext(ctx).Delete(&Asset{}, asset.ID).Error; err != nil {
		m.log.Error("delete asset failed", "asset_id", asset.ID, "error", err)
		detail(c, http.StatusInternalServerError, "failed to delete asset")
		return
	}

	m.invalidate(ctx)
	c.JSON(http.StatusOK, asset)
}

func (m *Module) handleServeFile(c *gin.Context) {
	name, err := sanitizeName(strings.TrimPrefix(c.Param("filepath"), "/"))
	if err != nil || strings.Contains(strings.Trim(c.Param("filepath"), "/"), "/") {
		c.Status(http.StatusNotFound)
		return
	}

	blob, err := m.blobs.Open(c.Request.Context(), name)
	if err != nil {
		if !errors.Is(err, ErrBlobNotFound) {
			m.log.Warn("open stored file failed", "name", name, "error", err)
		}
		c.Status(http.StatusNotFound)
		return
	}
	defer blob.Body.Close()

	contentType := blob.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.DataFromReader(http.StatusOK, blob.Size, contentType, blob.Body, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}

func (m *Module) assetByParam(c *gin.Context) (*Asset, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "asset id must be an integer")
		return nil, false
	}

	var asset Asset
	if err := m.db.WithContext(c.Request.Context()).First(&asset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			detail(c, http.StatusNotFound, "Asset not found")
		} else {
			m.log.Error("fetch asset failed", "asset_id", id, "error", err)
			detail(c, http.StatusInternalServerError, "failed to fetch asset")
		}
		return nil, false
	}
	return &asset, true
}

func (m *Module) invalidate(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Invalidate(ctx); err != nil {
		m.log.Warn("invalidate asset list cache failed", "error", err)
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func orDefault(p *float64, def float64) *float64 {
	if p == nil {
		return Float(def)
	}
	return p
}
