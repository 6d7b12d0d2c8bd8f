package repository

import "database/sql"

type Repo struct {
	db *sql.DB
}

type Settings struct {
	GuildID               string
	SecondsWaitAfterEmpty int
	DefaultQueuePageSize  int
	QAddEphemeral         bool
}
