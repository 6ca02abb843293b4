package voiceRepository

const (
	queryCreateVoiceCommand = `
		INSERT INTO voice_commands (
			id, session_id, mode, transcript, outcome,
			message, task_id, draft_id, created_at
		) VALUES (
			:id, :session_id, :mode, :transcript, :outcome,
			:message, :task_id, :draft_id, :created_at
		)
	`

	queryListVoiceCommands = `
		SELECT
			id, session_id, mode, transcript, outcome,
			message, task_id, draft_id, created_at
		FROM voice_commands
		ORDER BY created_at DESC, id DESC
		LIMIT :limit OFFSET :offset
	`

	queryCountVoiceCommands = `
		SELECT COUNT(*)
		FROM voice_commands
	`
)
