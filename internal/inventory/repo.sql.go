package inventory

const selectItemForUpdate = `SELECT id, name, minimum_stock, status, active, owner
FROM items WHERE id = $1 FOR UPDATE`

const selectItem = `SELECT id, name, minimum_stock, status, active, owner
FROM items WHERE id = $1`

// FOR SHARE blocks a concurrent deactivation until the movement commits.
const selectLocationForShare = `SELECT id, active FROM locations WHERE id = $1 FOR SHARE`

const selectStockForUpdate = `SELECT quantity FROM stock_entries
WHERE item_id = $1 AND location_id = $2 FOR UPDATE`

const selectStock = `SELECT quantity FROM stock_entries WHERE item_id = $1 AND location_id = $2`

const selectAggregate = `SELECT COALESCE(SUM(quantity), 0)::BIGINT FROM stock_entries WHERE item_id = $1`

const selectItemStock = `SELECT item_id, location_id, quantity, updated_at
FROM stock_entries WHERE item_id = $1 ORDER BY location_id`

const upsertStock = `INSERT INTO stock_entries (item_id, location_id, quantity, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (item_id, location_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
RETURNING updated_at`

const insertMovement = `INSERT INTO movements (type, item_id, location_id, quantity, quantity_before, quantity_after, actor, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
RETURNING id, created_at`

const updateItemStatus = `UPDATE items SET status = $2, updated_at = NOW() WHERE id = $1`

const movementColumns = `id, type, item_id, location_id, quantity, quantity_before, quantity_after, actor, note, created_at`

// replayStock rebuilds per-location quantities from the movement log.
const replayStock = `SELECT location_id,
	SUM(CASE WHEN type = 'ENTRY' THEN quantity ELSE -quantity END)::BIGINT
FROM movements WHERE item_id = $1 GROUP BY location_id`

const recordedStock = `SELECT location_id, quantity FROM stock_entries WHERE item_id = $1`

const selectDrift = `WITH replay AS (
	SELECT item_id, location_id,
		SUM(CASE WHEN type = 'ENTRY' THEN quantity ELSE -quantity END)::BIGINT AS quantity
	FROM movements GROUP BY item_id, location_id
)
SELECT COALESCE(s.item_id, r.item_id), COALESCE(s.location_id, r.location_id),
	COALESCE(s.quantity, 0), COALESCE(r.quantity, 0)
FROM stock_entries s
FULL OUTER JOIN replay r ON r.item_id = s.item_id AND r.location_id = s.location_id
WHERE COALESCE(s.quantity, 0) <> COALESCE(r.quantity, 0)
ORDER BY 1, 2`

const selectItemAggregates = `SELECT i.id, i.minimum_stock, i.status, COALESCE(SUM(s.quantity), 0)::BIGINT
FROM items i LEFT JOIN stock_entries s ON s.item_id = i.id
GROUP BY i.id, i.minimum_stock, i.status
ORDER BY i.id`
