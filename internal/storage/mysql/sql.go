package mysql

// Each tab is a row in sheet_tabs; its cells live in sheet_rows as one JSON
// array per row, pos starting at 1 like a spreadsheet.
var schemaSQL = []string{`
CREATE TABLE IF NOT EXISTS sheet_tabs (
  name       VARCHAR(191) NOT NULL,
  created_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (name)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin
`, `
CREATE TABLE IF NOT EXISTS sheet_rows (
  tab   VARCHAR(191) NOT NULL,
  pos   INT          NOT NULL,
  cells JSON         NOT NULL,
  PRIMARY KEY (tab, pos),
  CONSTRAINT fk_sheet_rows_tab FOREIGN KEY (tab) REFERENCES sheet_tabs (name) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin
`}

const insertTabSQL = `INSERT IGNORE INTO sheet_tabs (name) VALUES (?)`

const listTabsSQL = `SELECT name FROM sheet_tabs ORDER BY created_at, name`

// lockTabSQL serializes writers of one tab for the life of the transaction.
const lockTabSQL = `SELECT name FROM sheet_tabs WHERE name = ? FOR UPDATE`

const tabExistsSQL = `SELECT 1 FROM sheet_tabs WHERE name = ?`

const selectRowsSQL = `SELECT cells FROM sheet_rows WHERE tab = ? ORDER BY pos`

const selectFirstRowSQL = `SELECT cells FROM sheet_rows WHERE tab = ? ORDER BY pos LIMIT 1`

const maxPosSQL = `SELECT COALESCE(MAX(pos), 0) FROM sheet_rows WHERE tab = ?`

const insertRowsPrefix = "INSERT INTO sheet_rows (tab, pos, cells) VALUES "

// Descending order keeps the (tab, pos) key unique while shifting.
const shiftRowsSQL = `UPDATE sheet_rows SET pos = pos + 1 WHERE tab = ? ORDER BY pos DESC`

const clearRowsSQL = `DELETE FROM sheet_rows WHERE tab = ?`
