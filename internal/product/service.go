package product

import (
	"context"
	"mime/multipart"
	"strings"

	"storefront-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	Get(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, input CreateInput, files []*multipart.FileHeader) (*Product, error)
	Update(ctx context.Context, id string, input UpdateInput, files []*multipart.FileHeader) (*Product, error)
	Patch(ctx context.Context, id string, input PatchInput) (*Product, error)
	SetStatus(ctx context.Context, id string, active bool) (*Product, error)
	Delete(ctx context.Context, id string) error
}

type service struct {
	repo   Repository
	images ImageStore
}

func NewService(repo Repository, images ImageStore) Service {
	return &service{repo: repo, images: images}
}

// ParseID validates the textual form of a product id.
func ParseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, ErrInvalidProductID
	}
	return parsed, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, filter)
}

func (s *service) Get(ctx context.Context, id string) (*Product, error) {
	pid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, pid)
}

// priceScale matches the NUMERIC(12,2) price column.
const priceScale = 2

// validateFields checks p and rounds its price to the stored scale.
func validateFields(name string, p *Product) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	p.Price = p.Price.Round(priceScale)
	return nil
}

// saveImages stores every file or none of them.
func (s *service) saveImages(files []*multipart.FileHeader) ([]string, error) {
	if len(files) > MaxImages {
		return nil, ErrTooManyImages
	}

	saved := make([]string, 0, len(files))
	for _, fh := range files {
		p, err := s.images.Save(fh)
		if err != nil {
			s.images.Remove(saved...)
			return nil, err
		}
		saved = append(saved, p)
	}
	return saved, nil
}

func (s *service) Create(ctx context.Context, input CreateInput, files []*multipart.FileHeader) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateProduct"),
	)

	p := &Product{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Category:    input.Category,
		Price:       input.Price,
		Stock:       input.Stock,
		IsActive:    input.IsActive,
		Images:      []string{},
	}
	if err := validateFields(p.Name, p); err != nil {
		return nil, err
	}

	images, err := s.saveImages(files)
	if err != nil {
		return nil, err
	}
	p.Images = images

	if err := s.repo.Create(ctx, p); err != nil {
		log.Error("create failed, removing uploaded images",
			zap.Int("images", len(images)),
			zap.Error(err),
		)
		s.images.Remove(images...)
		return nil, err
	}

	return p, nil
}

func (s *service) Update(ctx context.Context, id string, input UpdateInput, files []*multipart.FileHeader) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "UpdateProduct"),
		zap.String("product_id", id),
	)

	pid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, pid)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Name = strings.TrimSpace(input.Name)
	updated.Description = input.Description
	updated.Category = input.Category
	updated.Price = input.Price
	updated.Stock = input.Stock
	updated.IsActive = input.IsActive
	if err := validateFields(updated.Name, &updated); err != nil {
		return nil, err
	}

	var uploaded []string
	if len(files) > 0 {
		uploaded, err = s.saveImages(files)
		if err != nil {
			return nil, err
		}
		updated.Images = uploaded
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		log.Error("update failed, removing uploaded images", zap.Error(err))
		s.images.Remove(uploaded...)
		return nil, err
	}

	if len(uploaded) > 0 {
		s.images.Remove(existing.Images...)
	}
	return &updated, nil
}

func (s *service) Patch(ctx context.Context, id string, input PatchInput) (*Product, error) {
	pid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	if input.Empty() {
		return nil, ErrNoFieldsToUpdate
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, ErrNameRequired
	}
	if input.Price != nil && input.Price.IsNegative() {
		return nil, ErrNegativePrice
	}
	if input.Stock != nil && *input.Stock < 0 {
		return nil, ErrNegativeStock
	}
	if input.Price != nil {
		rounded := input.Price.Round(priceScale)
		input.Price = &rounded
	}

	return s.repo.Patch(ctx, pid, input)
}

func (s *service) SetStatus(ctx context.Context, id string, active bool) (*Product, error) {
	pid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.SetStatus(ctx, pid, active)
}

func (s *service) Delete(ctx context.Context, id string) error {
	pid, err := ParseID(id)
	if err != nil {
		return err
	}

	existing, err := s.repo.GetByID(ctx, pid)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, pid); err != nil {
		return err
	}

	s.images.Remove(existing.Images...)
	return nil
}
