package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// The builtin auth collection doubles as the engagement document: the
// liked_events field mirrors every event whose liked_by set contains the
// user.
func init() {
	m.Register(func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		collection.Fields.Add(&core.TextField{
			Name: "phone",
		})
		collection.Fields.Add(&core.JSONField{
			Name: "liked_events",
		})

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		collection.Fields.RemoveByName("phone")
		collection.Fields.RemoveByName("liked_events")

		return app.Save(collection)
	})
}
