package lots

import (
	"context"
	"errors"
	"strings"

	"siglo-backend/internal/domain"

	"gorm.io/gorm"
)

var (
	ErrLotNotFound   = errors.New("Lot not found")
	ErrInvalidStatus = errors.New("Invalid lot status")
)

type Service struct {
	DB *gorm.DB
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status  domain.LotStatus
	StageID uint
}

func (s *Service) List(ctx context.Context, f Filter) ([]domain.Lot, error) {
	q := s.DB.WithContext(ctx).Preload("Stage")
	if f.Status != "" {
		status := domain.LotStatus(strings.ToUpper(string(f.Status)))
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		q = q.Where("status = ?", status)
	}
	if f.StageID != 0 {
		q = q.Where("stage_id = ?", f.StageID)
	}
	var lots []domain.Lot
	if err := q.Order("code ASC").Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Lot, error) {
	var lot domain.Lot
	if err := s.DB.WithContext(ctx).Preload("Stage").Where("code = ?", code).First(&lot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLotNotFound
		}
		return nil, err
	}
	return &lot, nil
}

func (s *Service) ListStages(ctx context.Context) ([]domain.Stage, error) {
	var stages []domain.Stage
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&stages).Error; err != nil {
		return nil, err
	}
	return stages, nil
}

// DefaultStages are the project's sales stages in display order.
var DefaultStages = []domain.Stage{
	{Name: "Lanzamiento", Description: "Etapa inicial del proyecto con lanzamiento comercial y difusión a inversionistas."},
	{Name: "Preventa", Description: "Oferta especial para inversionistas tempranos antes de la venta abierta al público."},
	{Name: "Construcción", Description: "Fase de construcción, urbanismo y adecuación de servicios del proyecto."},
	{Name: "Entrega", Description: "Etapa de entrega de lotes y acompañamiento postventa a los compradores."},
}

// EnsureDefaultStages creates missing default stages and refreshes the
// description of existing ones. It returns the number created.
func (s *Service) EnsureDefaultStages(ctx context.Context) (int, error) {
	created := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range DefaultStages {
			var stage domain.Stage
			err := tx.Where("name = ?", def.Name).First(&stage).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				stage = domain.Stage{Name: def.Name, Description: def.Description}
				if err := tx.Create(&stage).Error; err != nil {
					return err
				}
				created++
			case err != nil:
				return err
			case stage.Description != def.Description:
				if err := tx.Model(&stage).Update("description", def.Description).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	return created, err
}
