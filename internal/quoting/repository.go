package quoting

import (
	"context"
	"strings"
	"time"

	"github.com/estmator/estmator/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListFilter narrows quote listings. Zero values mean "no filter".
type ListFilter struct {
	ClientID int64
	OprID    int64
	Query    string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
	SortBy   string
	Order    string
}

// Repository handles database operations for quotes and their line items
type Repository interface {
	// Create inserts a quote and its items in one transaction
	Create(ctx context.Context, q *domain.Quote, items []domain.QuoteItem) error

	// Update saves the quote and replaces all of its items
	Update(ctx context.Context, q *domain.Quote, items []domain.QuoteItem) error

	GetByID(ctx context.Context, id int64) (*domain.Quote, error)
	GetByToken(ctx context.Context, token string) (*domain.Quote, error)

	// Items returns the quote items with Product and Product.Category loaded
	Items(ctx context.Context, quoteID int64) ([]domain.QuoteItem, error)

	List(ctx context.Context, f ListFilter) ([]domain.Quote, int64, error)

	// GrandTotals returns the grand total snapshot of every quote matching f
	GrandTotals(ctx context.Context, f ListFilter) ([]float64, error)

	MarkSent(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

// CatalogRepository reads the records a quote refers to
type CatalogRepository interface {
	ProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	Catalog(ctx context.Context) ([]domain.Category, []domain.Product, error)
	ClientByID(ctx context.Context, id int64) (*domain.Client, error)
	OprByID(ctx context.Context, id int64) (*domain.SysOpr, error)
	ActiveGlobalVars(ctx context.Context) (*domain.GlobalVars, error)
	GlobalVarsByID(ctx context.Context, id int64) (*domain.GlobalVars, error)
}

// GormRepository is the GORM implementation of Repository and CatalogRepository
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM-based repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

var (
	_ Repository        = (*GormRepository)(nil)
	_ CatalogRepository = (*GormRepository)(nil)
)

func (r *GormRepository) Create(ctx context.Context, q *domain.Quote, items []domain.QuoteItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(q).Error; err != nil {
			return err
		}
		return createItems(tx, q.ID, items)
	})
}

func (r *GormRepository) Update(ctx context.Context, q *domain.Quote, items []domain.QuoteItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(q).Error; err != nil {
			return err
		}
		if err := tx.Where("quote_id = ?", q.ID).Delete(&domain.QuoteItem{}).Error; err != nil {
			return err
		}
		return createItems(tx, q.ID, items)
	})
}

func createItems(tx *gorm.DB, quoteID int64, items []domain.QuoteItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].QuoteID = quoteID
	}
	return tx.Omit(clause.Associations).Create(&items).Error
}

func (r *GormRepository) GetByID(ctx context.Context, id int64) (*domain.Quote, error) {
	var q domain.Quote
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *GormRepository) GetByToken(ctx context.Context, token string) (*domain.Quote, error) {
	var q domain.Quote
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *GormRepository) Items(ctx context.Context, quoteID int64) ([]domain.QuoteItem, error) {
	var items []domain.QuoteItem
	err := r.db.WithContext(ctx).
		Preload("Product.Category").
		Where("quote_id = ?", quoteID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *GormRepository) filtered(ctx context.Context, f ListFilter) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&domain.Quote{})
	if f.ClientID != 0 {
		db = db.Where("client_id = ?", f.ClientID)
	}
	if f.OprID != 0 {
		db = db.Where("opr_id = ?", f.OprID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		if strings.EqualFold(db.Dialector.Name(), "postgres") {
			db = db.Where("name ILIKE ?", "%"+q+"%")
		} else {
			db = db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
		}
	}
	if f.From != nil {
		db = db.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("date < ?", *f.To)
	}
	return db
}

// whitelist sort columns to avoid SQL injection
var quoteSortColumns = map[string]string{
	"id":          "id",
	"name":        "name",
	"date":        "date",
	"grand_total": "grand_total",
	"created_at":  "created_at",
}

func (r *GormRepository) List(ctx context.Context, f ListFilter) ([]domain.Quote, int64, error) {
	db := r.filtered(ctx, f)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortCol, ok := quoteSortColumns[f.SortBy]
	if !ok {
		sortCol = "date"
	}
	order := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		order = "ASC"
	}
	db = db.Order(sortCol + " " + order).Order("id DESC")
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		db = db.Offset((page - 1) * f.PageSize).Limit(f.PageSize)
	}

	var quotes []domain.Quote
	if err := db.Find(&quotes).Error; err != nil {
		return nil, 0, err
	}
	return quotes, total, nil
}

func (r *GormRepository) GrandTotals(ctx context.Context, f ListFilter) ([]float64, error) {
	var totals []float64
	err := r.filtered(ctx, f).Pluck("grand_total", &totals).Error
	return totals, err
}

func (r *GormRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Quote{}).Where("id = ?", id).
		Updates(map[string]interface{}{"sent_at": at, "updated_at": at}).Error
}

func (r *GormRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quote_id = ?", id).Delete(&domain.QuoteItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Quote{}).Error
	})
}

func (r *GormRepository) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	out := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []domain.Product
	if err := r.db.WithContext(ctx).Preload("Category").Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (r *GormRepository) Catalog(ctx context.Context) ([]domain.Category, []domain.Product, error) {
	var cats []domain.Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&cats).Error; err != nil {
		return nil, nil, err
	}
	var products []domain.Product
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&products).Error; err != nil {
		return nil, nil, err
	}
	return cats, products, nil
}

func (r *GormRepository) ClientByID(ctx context.Context, id int64) (*domain.Client, error) {
	var c domain.Client
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepository) OprByID(ctx context.Context, id int64) (*domain.SysOpr, error) {
	var o domain.SysOpr
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepository) ActiveGlobalVars(ctx context.Context) (*domain.GlobalVars, error) {
	var g domain.GlobalVars
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("created_at DESC").First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GormRepository) GlobalVarsByID(ctx context.Context, id int64) (*domain.GlobalVars, error) {
	var g domain.GlobalVars
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}
