package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "tickets",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "user_id",
					"type": "text",
					"required": true
				},
				{
					"name": "event_id",
					"type": "text",
					"required": true
				},
				{
					"name": "event_name",
					"type": "text",
					"required": false
				},
				{
					"name": "ticket_type_id",
					"type": "text",
					"required": true
				},
				{
					"name": "ticket_type_name",
					"type": "text",
					"required": false
				},
				{
					"name": "attempt_id",
					"type": "text",
					"required": true
				},
				{
					"name": "qr_payload",
					"type": "text",
					"required": false
				},
				{
					"name": "secret_hash",
					"type": "text",
					"required": false,
					"hidden": true
				},
				{
					"name": "status",
					"type": "select",
					"required": true,
					"values": ["active", "used", "expired"],
					"maxSelect": 1
				},
				{
					"name": "created_at",
					"type": "date",
					"required": false
				},
				{
					"name": "redeemed_at",
					"type": "date",
					"required": false
				}
			],
			"indexes": [
				"CREATE INDEX idx_tickets_user ON tickets (user_id)",
				"CREATE INDEX idx_tickets_event ON tickets (event_id)",
				"CREATE INDEX idx_tickets_attempt ON tickets (attempt_id)"
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}
		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
