package report

import (
	"context"
	"io"
	"strings"

	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/pkg/common"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var ErrInvalidRow = errors.New("invalid catalog row")

// ProductRow is one line of the catalog CSV.
type ProductRow struct {
	Category    string `csv:"category"`
	Name        string `csv:"name"`
	MinsPiece   int64  `csv:"mins_piece"`
	MultDollies int64  `csv:"mult_dollies"`
	MCart       int64  `csv:"m_cart"`
	LCart       int64  `csv:"l_cart"`
	PCart       int64  `csv:"p_cart"`
	SPack       int64  `csv:"s_pack"`
}

// ImportResult counts what an import changed.
type ImportResult struct {
	Categories int `json:"categories"`
	Created    int `json:"created"`
	Updated    int `json:"updated"`
}

// ExportProducts writes products as CSV. Products should have Category loaded.
func ExportProducts(w io.Writer, products []domain.Product) error {
	rows := make([]*ProductRow, 0, len(products))
	for _, p := range products {
		row := &ProductRow{
			Name:        p.Name,
			MinsPiece:   p.MinsPiece,
			MultDollies: p.MultDollies,
			MCart:       p.MCart,
			LCart:       p.LCart,
			PCart:       p.PCart,
			SPack:       p.SPack,
		}
		if p.Category != nil {
			row.Category = p.Category.Name
		}
		rows = append(rows, row)
	}
	return gocsv.Marshal(rows, w)
}

// ParseProducts reads and checks catalog CSV rows.
func ParseProducts(r io.Reader) ([]*ProductRow, error) {
	var rows []*ProductRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, errors.Wrap(ErrInvalidRow, err.Error())
	}
	for i, row := range rows {
		row.Category = strings.TrimSpace(row.Category)
		row.Name = strings.TrimSpace(row.Name)
		line := i + 2 // header is line 1
		if row.Category == "" || row.Name == "" {
			return nil, errors.Wrapf(ErrInvalidRow, "line %d: category and name are required", line)
		}
		if row.MinsPiece < 0 || row.MultDollies < 0 || row.MCart < 0 ||
			row.LCart < 0 || row.PCart < 0 || row.SPack < 0 {
			return nil, errors.Wrapf(ErrInvalidRow, "line %d: multipliers must not be negative", line)
		}
	}
	return rows, nil
}

// ImportProducts upserts rows by category name and product name, creating
// missing categories. All rows are applied in one transaction.
func ImportProducts(ctx context.Context, db *gorm.DB, rows []*ProductRow) (*ImportResult, error) {
	result := &ImportResult{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categories := make(map[string]int64)
		for _, row := range rows {
			catID, ok := categories[row.Category]
			if !ok {
				var cat domain.Category
				err := tx.Where("name = ?", row.Category).First(&cat).Error
				switch {
				case errors.Is(err, gorm.ErrRecordNotFound):
					cat = domain.Category{ID: common.UUIDint64(), Name: row.Category}
					if err := tx.Create(&cat).Error; err != nil {
						return err
					}
					result.Categories++
				case err != nil:
					return err
				}
				catID = cat.ID
				categories[row.Category] = catID
			}

			values := map[string]interface{}{
				"mins_piece":   row.MinsPiece,
				"mult_dollies": row.MultDollies,
				"m_cart":       row.MCart,
				"l_cart":       row.LCart,
				"p_cart":       row.PCart,
				"s_pack":       row.SPack,
			}
			var existing domain.Product
			err := tx.Where("category_id = ? AND name = ?", catID, row.Name).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				p := domain.Product{
					ID:          common.UUIDint64(),
					CategoryID:  catID,
					Name:        row.Name,
					MinsPiece:   row.MinsPiece,
					MultDollies: row.MultDollies,
					MCart:       row.MCart,
					LCart:       row.LCart,
					PCart:       row.PCart,
					SPack:       row.SPack,
				}
				if err := tx.Create(&p).Error; err != nil {
					return err
				}
				result.Created++
			case err != nil:
				return err
			default:
				if err := tx.Model(&existing).Updates(values).Error; err != nil {
					return err
				}
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "import products")
	}
	return result, nil
}
