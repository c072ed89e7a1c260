package storage

import "context"

type reportRow struct {
	Key           string  `db:"handle_key"`
	DisplayHandle string  `db:"display_handle"`
	Structure     string  `db:"structure"`
	Category      string  `db:"category"`
	Rarity        string  `db:"rarity"`
	Demand        string  `db:"demand"`
	Score         float64 `db:"score"`
	Branding      string  `db:"branding"`
	PriceLow      int     `db:"price_low"`
	PriceHigh     int     `db:"price_high"`
	CreatedAt     int64   `db:"created_at"`
}

func (db *DB) GetReport(ctx context.Context, key string) (Report, error) {
	var r reportRow
	err := db.x.GetContext(ctx, &r, db.q(`SELECT handle_key, display_handle, structure, category,
		rarity, demand, score, branding, price_low, price_high, created_at
		FROM valuation_reports WHERE handle_key = ?`), key)
	if err != nil {
		return Report{}, wrap("get report", notFound(err))
	}
	return Report{
		Key:           r.Key,
		DisplayHandle: r.DisplayHandle,
		Structure:     r.Structure,
		Category:      r.Category,
		Rarity:        r.Rarity,
		Demand:        r.Demand,
		Score:         r.Score,
		Branding:      r.Branding,
		PriceLow:      r.PriceLow,
		PriceHigh:     r.PriceHigh,
		CreatedAt:     fromMillis(r.CreatedAt),
	}, nil
}

// InsertReport stores rep unless a report for the key exists. It reports
// whether this call inserted the row.
func (db *DB) InsertReport(ctx context.Context, rep Report) (bool, error) {
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = db.now()
	}
	res, err := db.x.ExecContext(ctx, db.q(`INSERT INTO valuation_reports
		(handle_key, display_handle, structure, category, rarity, demand, score, branding, price_low, price_high, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (handle_key) DO NOTHING`),
		rep.Key, rep.DisplayHandle, rep.Structure, rep.Category, rep.Rarity, rep.Demand,
		rep.Score, rep.Branding, rep.PriceLow, rep.PriceHigh, rep.CreatedAt.UnixMilli())
	if err != nil {
		return false, wrap("insert report", err)
	}
	n, err := res.RowsAffected()
	return n == 1, wrap("insert report", err)
}
