package migrator

const migration_2 = `
CREATE TABLE <SCHEMA_PLACEHOLDER>.np_notification_events(
    id uuid not null default(uuid_generate_v4()),
    notification_id uuid not null,
    event varchar not null,
    event_metadata jsonb,
    created_at timestamp not null default(timezone('utc', now())),
    constraint pk_np_notification_events primary key (id),
    constraint fk_np_notification_events_notification foreign key (notification_id) references <SCHEMA_PLACEHOLDER>.np_in_app_notifications(id) on delete cascade
);

CREATE INDEX idx_np_notification_events_notification_id ON <SCHEMA_PLACEHOLDER>.np_notification_events(notification_id);
`
