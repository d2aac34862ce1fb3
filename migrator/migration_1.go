package migrator

const migration_1 = `
CREATE TABLE <SCHEMA_PLACEHOLDER>.np_in_app_notifications(
    id uuid not null default(uuid_generate_v4()),
    user_id varchar not null,
    title varchar not null,
    body text not null,
    type varchar not null,
    data jsonb,
    is_read boolean not null default(false),
    created_at timestamp not null default(timezone('utc', now())),
    read_at timestamp,
    action_url varchar,
    constraint pk_np_in_app_notifications primary key (id)
);

CREATE INDEX idx_np_in_app_notifications_user_id ON <SCHEMA_PLACEHOLDER>.np_in_app_notifications(user_id);
CREATE INDEX idx_np_in_app_notifications_is_read ON <SCHEMA_PLACEHOLDER>.np_in_app_notifications(user_id, is_read);
`
