package postgresql

// migrations returns the full schema history keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: migrationV1,
	}
}

const migrationV1 = `
	CREATE TABLE IF NOT EXISTS workflows (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		trigger_type VARCHAR(255) NOT NULL,
		trigger_filter JSONB,
		actions JSONB NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'active',
		owner VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_workflows_trigger_type
		ON workflows (trigger_type) WHERE status = 'active';

	CREATE TABLE IF NOT EXISTS workflow_executions (
		id UUID PRIMARY KEY,
		workflow_id UUID NOT NULL,
		status VARCHAR(50) NOT NULL,
		start_time TIMESTAMP WITH TIME ZONE NOT NULL,
		end_time TIMESTAMP WITH TIME ZONE,
		trigger_data JSONB,
		result JSONB,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_workflow_executions_workflow_id
		ON workflow_executions (workflow_id, start_time DESC);

	CREATE TABLE IF NOT EXISTS workflow_steps (
		id UUID PRIMARY KEY,
		execution_id UUID NOT NULL,
		action_index INTEGER NOT NULL,
		action_type VARCHAR(255) NOT NULL,
		status VARCHAR(50) NOT NULL,
		start_time TIMESTAMP WITH TIME ZONE NOT NULL,
		end_time TIMESTAMP WITH TIME ZONE,
		result JSONB,
		error TEXT NOT NULL DEFAULT '',
		UNIQUE (execution_id, action_index)
	);

	CREATE INDEX IF NOT EXISTS idx_workflow_steps_execution_id
		ON workflow_steps (execution_id, action_index);

	CREATE TABLE IF NOT EXISTS trigger_events (
		id UUID PRIMARY KEY,
		event_type VARCHAR(255) NOT NULL,
		resource_id VARCHAR(255) NOT NULL DEFAULT '',
		resource_type VARCHAR(255) NOT NULL DEFAULT '',
		user_id VARCHAR(255) NOT NULL DEFAULT '',
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		payload JSONB,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		processing_attempts INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_trigger_events_pending
		ON trigger_events (timestamp) WHERE processed = FALSE;

	CREATE TABLE IF NOT EXISTS webhook_subscriptions (
		id UUID PRIMARY KEY,
		channel_id VARCHAR(255) NOT NULL,
		target_address TEXT NOT NULL,
		resource_id VARCHAR(255) NOT NULL,
		resource_type VARCHAR(255) NOT NULL,
		expiration TIMESTAMP WITH TIME ZONE NOT NULL,
		state VARCHAR(50) NOT NULL DEFAULT 'active',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_webhook_subscriptions_expiration
		ON webhook_subscriptions (expiration) WHERE state = 'active';
`
