package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// CatalogService resolves products for the till and manages catalog master data.
type CatalogService interface {
	// Lookup resolves a product by ID or exact SKU. Missing or inactive products return ErrNotFound.
	Lookup(ctx context.Context, ref ProductRef) (*ProductSnapshot, error)
	// LookupTx resolves a product through the caller's transaction, bypassing the cache.
	LookupTx(ctx context.Context, tx pgx.Tx, ref ProductRef) (*ProductSnapshot, error)

	CreateProduct(ctx context.Context, in ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, productID int, upd ProductUpdate) (*Product, error)
	DeactivateProduct(ctx context.Context, productID int) (*Product, error)
	ListProducts(ctx context.Context, includeInactive bool) ([]ProductSnapshot, error)

	CreateCategory(ctx context.Context, in CategoryInput) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateSupplier(ctx context.Context, in SupplierInput) (*Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
}

type catalogService struct {
	pool   *pgxpool.Pool
	cache  ProductCache
	logger *zap.Logger
}

// NewCatalogService constructs a CatalogService. cache may be nil to disable caching.
func NewCatalogService(pool *pgxpool.Pool, cache ProductCache, logger *zap.Logger) CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &catalogService{pool: pool, cache: cache, logger: logger}
}

const productColumns = `
	p.id, p.sku, p.name, p.description, p.category_id, p.supplier_id,
	p.unit_price, p.tax_rate, p.minimum_stock, p.reorder_level, p.is_active,
	p.created_at, p.updated_at`

func scanProduct(row pgx.Row, p *Product, extra ...any) error {
	dest := []any{
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.SupplierID,
		&p.UnitPrice, &p.TaxRate, &p.MinimumStock, &p.ReorderLevel, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// ── Lookup ────────────────────────────────────────────────────────────────────

func (s *catalogService) Lookup(ctx context.Context, ref ProductRef) (*ProductSnapshot, error) {
	if s.cache == nil || ref.SKU == "" || ref.ID > 0 {
		return lookupProduct(ctx, s.pool, ref)
	}

	p, err := s.cache.GetOrLoad(ctx, ref.SKU, func(ctx context.Context) (*Product, error) {
		snap, err := lookupProduct(ctx, s.pool, ProductRef{SKU: ref.SKU})
		if err != nil {
			return nil, err
		}
		return &snap.Product, nil
	})
	if err != nil {
		return nil, err
	}

	onHand, err := readOnHand(ctx, s.pool, p.ID)
	if err != nil {
		return nil, err
	}
	return newSnapshot(*p, onHand), nil
}

func (s *catalogService) LookupTx(ctx context.Context, tx pgx.Tx, ref ProductRef) (*ProductSnapshot, error) {
	return lookupProduct(ctx, tx, ref)
}

func lookupProduct(ctx context.Context, q pgxQuerier, ref ProductRef) (*ProductSnapshot, error) {
	if ref.ID <= 0 && ref.SKU == "" {
		return nil, validationf("product reference is required")
	}
	if ref.ID > 0 {
		snap, err := lookupProductWhere(ctx, q, "p.id = $1", ref.ID)
		if err == nil || !errors.Is(err, ErrNotFound) || ref.SKU == "" {
			return snap, err
		}
	}
	return lookupProductWhere(ctx, q, "p.sku = $1", NormalizeSKU(ref.SKU))
}

func lookupProductWhere(ctx context.Context, q pgxQuerier, where string, arg any) (*ProductSnapshot, error) {
	var p Product
	var onHand int
	row := q.QueryRow(ctx, `
		SELECT`+productColumns+`, COALESCE(sl.on_hand, 0)
		FROM products p
		LEFT JOIN stock_levels sl ON sl.product_id = p.id
		WHERE `+where+` AND p.is_active = true`,
		arg,
	)
	if err := scanProduct(row, &p, &onHand); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("product %v not found", arg)
		}
		return nil, storageErr("look up product", err)
	}
	return newSnapshot(p, onHand), nil
}

func newSnapshot(p Product, onHand int) *ProductSnapshot {
	return &ProductSnapshot{
		Product: p,
		OnHand:  onHand,
		Status:  DeriveStatus(onHand, p.MinimumStock, p.ReorderLevel),
	}
}

// ── Products ──────────────────────────────────────────────────────────────────

func (s *catalogService) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var p Product
	row := s.pool.QueryRow(ctx, `
		INSERT INTO products AS p (sku, name, description, category_id, supplier_id,
		                           unit_price, tax_rate, minimum_stock, reorder_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING`+productColumns,
		NormalizeSKU(in.SKU), strings.TrimSpace(in.Name), in.Description, in.CategoryID, in.SupplierID,
		in.UnitPrice, in.TaxRate, in.MinimumStock, in.ReorderLevel,
	)
	if err := scanProduct(row, &p); err != nil {
		err = storageErr("create product", err)
		if errors.Is(err, ErrDuplicateKey) {
			return nil, duplicatef("SKU %s already exists", NormalizeSKU(in.SKU))
		}
		return nil, err
	}
	return &p, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, productID int, upd ProductUpdate) (*Product, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	p, err := getProductForUpdate(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if err := upd.apply(p); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE products AS p
		SET name = $2, description = $3, category_id = $4, supplier_id = $5,
		    unit_price = $6, tax_rate = $7, minimum_stock = $8, reorder_level = $9,
		    updated_at = NOW()
		WHERE p.id = $1
		RETURNING`+productColumns,
		p.ID, p.Name, p.Description, p.CategoryID, p.SupplierID,
		p.UnitPrice, p.TaxRate, p.MinimumStock, p.ReorderLevel,
	)
	if err := scanProduct(row, p); err != nil {
		return nil, storageErr("update product", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("commit product update", err)
	}

	s.invalidate(ctx, p.SKU)
	return p, nil
}

func (s *catalogService) DeactivateProduct(ctx context.Context, productID int) (*Product, error) {
	var p Product
	row := s.pool.QueryRow(ctx, `
		UPDATE products AS p
		SET is_active = false, updated_at = NOW()
		WHERE p.id = $1
		RETURNING`+productColumns,
		productID,
	)
	if err := scanProduct(row, &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("product id=%d not found", productID)
		}
		return nil, storageErr("deactivate product", err)
	}
	s.invalidate(ctx, p.SKU)
	return &p, nil
}

func (s *catalogService) ListProducts(ctx context.Context, includeInactive bool) ([]ProductSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+productColumns+`, COALESCE(sl.on_hand, 0)
		FROM products p
		LEFT JOIN stock_levels sl ON sl.product_id = p.id
		WHERE p.is_active = true OR $1::boolean
		ORDER BY p.sku`,
		includeInactive,
	)
	if err != nil {
		return nil, storageErr("query products", err)
	}
	defer rows.Close()

	var products []ProductSnapshot
	for rows.Next() {
		var p Product
		var onHand int
		if err := scanProduct(rows, &p, &onHand); err != nil {
			return nil, storageErr("scan product", err)
		}
		products = append(products, *newSnapshot(p, onHand))
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate products", err)
	}
	return products, nil
}

func getProductForUpdate(ctx context.Context, tx pgx.Tx, productID int) (*Product, error) {
	var p Product
	row := tx.QueryRow(ctx, `
		SELECT`+productColumns+`
		FROM products p
		WHERE p.id = $1
		FOR UPDATE`,
		productID,
	)
	if err := scanProduct(row, &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("product id=%d not found", productID)
		}
		return nil, storageErr("read product for update", err)
	}
	return &p, nil
}

func (s *catalogService) invalidate(ctx context.Context, sku string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, sku); err != nil {
		s.logger.Warn("failed to invalidate product cache", zap.String("sku", sku), zap.Error(err))
	}
}

// ── Categories & suppliers ────────────────────────────────────────────────────

func (s *catalogService) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationf("category name is required")
	}

	var c Category
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, created_at`,
		name, in.Description,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		err = storageErr("create category", err)
		if errors.Is(err, ErrDuplicateKey) {
			return nil, duplicatef("category %q already exists", name)
		}
		return nil, err
	}
	return &c, nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, storageErr("query categories", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, storageErr("scan category", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate categories", err)
	}
	return categories, nil
}

func (s *catalogService) CreateSupplier(ctx context.Context, in SupplierInput) (*Supplier, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationf("supplier name is required")
	}
	var taxNumber *string
	if tn := strings.TrimSpace(in.TaxNumber); tn != "" {
		taxNumber = &tn
	}

	var sup Supplier
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (name, tax_number, email, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, tax_number, email, phone, address, created_at`,
		name, taxNumber, in.Email, in.Phone, in.Address,
	).Scan(&sup.ID, &sup.Name, &sup.TaxNumber, &sup.Email, &sup.Phone, &sup.Address, &sup.CreatedAt)
	if err != nil {
		err = storageErr("create supplier", err)
		if errors.Is(err, ErrDuplicateKey) {
			return nil, duplicatef("supplier with tax number %s already exists", in.TaxNumber)
		}
		return nil, err
	}
	return &sup, nil
}

func (s *catalogService) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, tax_number, email, phone, address, created_at
		FROM suppliers
		ORDER BY name`)
	if err != nil {
		return nil, storageErr("query suppliers", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.TaxNumber, &sup.Email, &sup.Phone, &sup.Address, &sup.CreatedAt); err != nil {
			return nil, storageErr("scan supplier", err)
		}
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate suppliers", err)
	}
	return suppliers, nil
}
