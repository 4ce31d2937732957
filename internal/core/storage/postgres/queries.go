package postgres

// SQL queries for aggregation template storage

const (
	// querySaveTemplate inserts a template. ON CONFLICT DO NOTHING returns
	// no rows (sql.ErrNoRows) when the name is taken.
	querySaveTemplate = `
		INSERT INTO aggregation_templates (id, name, collection, specs, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`

	queryGetTemplate = `
		SELECT id, name, collection, specs, created_at
		FROM aggregation_templates
		WHERE name = $1
	`

	// queryListTemplates treats an empty collection as "all collections".
	queryListTemplates = `
		SELECT id, name, collection, specs, created_at
		FROM aggregation_templates
		WHERE $1::text = '' OR collection = $1::text
		ORDER BY name ASC
	`

	queryDeleteTemplate = `DELETE FROM aggregation_templates WHERE name = $1`

	queryTemplatesTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'aggregation_templates'
		)
	`
)
