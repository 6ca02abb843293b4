package taskRepository

const (
	queryCreateDraft = `
		INSERT INTO task_drafts (
			id, draft, transcript, last_error, created_at, updated_at
		) VALUES (
			:id, :draft, :transcript, :last_error, :created_at, :updated_at
		)
	`

	queryGetDraftByID = `
		SELECT id, draft, transcript, last_error, created_at, updated_at
		FROM task_drafts
		WHERE id = :id
	`

	queryListDrafts = `
		SELECT id, draft, transcript, last_error, created_at, updated_at
		FROM task_drafts
		ORDER BY created_at DESC
	`

	queryUpdateDraftError = `
		UPDATE task_drafts
		SET last_error = :last_error, updated_at = :updated_at
		WHERE id = :id
	`

	queryDeleteDraft = `
		DELETE FROM task_drafts
		WHERE id = :id
	`
)
