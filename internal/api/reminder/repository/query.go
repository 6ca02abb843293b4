package reminderRepository

const (
	queryCreateInstruction = `
		INSERT INTO reminder_instructions (
			id, owner_key, notification_id, kind, frequency, deliver_at,
			title, body, category, priority, suppressible, created_at
		) VALUES (
			:id, :owner_key, :notification_id, :kind, :frequency, :deliver_at,
			:title, :body, :category, :priority, :suppressible, :created_at
		)
	`

	queryGetInstructionByOwner = `
		SELECT id, owner_key, notification_id, kind, frequency, deliver_at,
			title, body, category, priority, suppressible, created_at
		FROM reminder_instructions
		WHERE owner_key = :owner_key
	`

	queryListInstructions = `
		SELECT id, owner_key, notification_id, kind, frequency, deliver_at,
			title, body, category, priority, suppressible, created_at
		FROM reminder_instructions
		ORDER BY deliver_at ASC
	`

	queryUpdateNotificationID = `
		UPDATE reminder_instructions
		SET notification_id = :notification_id
		WHERE owner_key = :owner_key
	`

	queryDeleteInstructionByOwner = `
		DELETE FROM reminder_instructions
		WHERE owner_key = :owner_key
	`
)
