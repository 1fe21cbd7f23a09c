package storage

func schema(d Dialect) []string {
	var (
		pk    = "INTEGER PRIMARY KEY AUTOINCREMENT"
		ts    = "DATETIME"
		money = "TEXT"
		float = "REAL"
	)
	if d == DialectPostgres {
		pk, ts, money, float = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ", "NUMERIC(20,6)", "DOUBLE PRECISION"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id ` + pk + `,
			fingerprint VARCHAR(64) NOT NULL UNIQUE,
			url VARCHAR(2048) UNIQUE,
			security VARCHAR(16) NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			source VARCHAR(128) NOT NULL DEFAULT '',
			published_at ` + ts + ` NOT NULL,
			collected_at ` + ts + ` NOT NULL,
			used_flag INTEGER NOT NULL DEFAULT 0,
			last_used_at ` + ts + `,
			last_recommendation_id BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_security_published ON articles (security, published_at)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_security_used_published ON articles (security, used_flag, published_at)`,

		`CREATE TABLE IF NOT EXISTS recommendations (
			id ` + pk + `,
			security VARCHAR(16) NOT NULL,
			action VARCHAR(16) NOT NULL,
			confidence VARCHAR(16) NOT NULL,
			sentiment_score ` + float + ` NOT NULL DEFAULT 0,
			risk VARCHAR(16) NOT NULL DEFAULT '',
			price_at_analysis ` + money + ` NOT NULL,
			time_horizon VARCHAR(16) NOT NULL,
			analysis_timestamp ` + ts + ` NOT NULL,
			article_ids TEXT NOT NULL DEFAULT '[]',
			validation_status VARCHAR(32) NOT NULL DEFAULT 'PENDING',
			validated_at ` + ts + `,
			price_at_validation ` + money + `,
			price_change_pct ` + float + `,
			accuracy_score ` + float + `,
			outcome TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_security_analysis ON recommendations (security, analysis_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_status_analysis ON recommendations (validation_status, analysis_timestamp)`,

		`CREATE TABLE IF NOT EXISTS validation_metrics (
			date VARCHAR(10) PRIMARY KEY,
			total_recommendations INTEGER NOT NULL,
			accurate_count INTEGER NOT NULL,
			partially_accurate_count INTEGER NOT NULL,
			inaccurate_count INTEGER NOT NULL,
			avg_accuracy_score ` + float + ` NOT NULL,
			recommendations_by_confidence TEXT NOT NULL DEFAULT '{}'
		)`,
	}
}
