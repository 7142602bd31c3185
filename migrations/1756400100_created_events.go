package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "events",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "title",
					"type": "text",
					"required": true,
					"presentable": true
				},
				{
					"name": "description",
					"type": "text",
					"required": false
				},
				{
					"name": "venue",
					"type": "text",
					"required": false
				},
				{
					"name": "contact_phone",
					"type": "text",
					"required": false
				},
				{
					"name": "poster_ref",
					"type": "text",
					"required": false
				},
				{
					"name": "start_time",
					"type": "date",
					"required": true
				},
				{
					"name": "end_time",
					"type": "date",
					"required": false
				},
				{
					"name": "category",
					"type": "text",
					"required": false
				},
				{
					"name": "recurrence",
					"type": "select",
					"required": false,
					"values": ["none", "daily", "weekly", "monthly"],
					"maxSelect": 1
				},
				{
					"name": "multi_day",
					"type": "bool",
					"required": false
				},
				{
					"name": "organizer_ids",
					"type": "json",
					"required": false,
					"maxSize": 0
				},
				{
					"name": "ticketed",
					"type": "bool",
					"required": false
				},
				{
					"name": "ticket_types",
					"type": "json",
					"required": false,
					"maxSize": 0
				},
				{
					"name": "likes",
					"type": "number",
					"required": false,
					"onlyInt": true
				},
				{
					"name": "liked_by",
					"type": "json",
					"required": false,
					"maxSize": 0
				}
			],
			"indexes": [
				"CREATE INDEX idx_events_start_time ON events (start_time)",
				"CREATE INDEX idx_events_category ON events (category)"
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}
		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
