/*
Package backend implements the metadata driven admin backend

A backend serves CRUD routes for the models of a schema. What a client sees and
may do is controlled per entity by a Configuration.

Schema

The schema describes models with their fields and enums. It is loaded with
schema.Parse or schema.LoadFromFS. Every model has exactly one identity field.

Configuration

A configuration is partly data and partly code. The data part can be written as JSON:

	{
	  "property": {
	    "password": { "visible": false },
	    "email": { "visible": { "list": false }, "format": "mask-email" },
	    "encrypt_id": { "alias": "encrypted ID" },
	    "avatar": { "component": "upload" }
	  },
	  "permissions": {
	    "delete": false
	  }
	}

A field with visible false is hidden from every response. A per operation mapping hides
the field only for the operations mapped to false. Formats name a formatter which is applied
to list output; custom formatters are added in Configuration.Formatters. A field with a
component accepts any value, and the upload component makes the field a file upload.
Upload fields are only set from file parts of a multipart create. JSON payloads carrying
them are rejected, and their files are deleted together with the entity.

Identity and relation values of a payload are never stored. The collection assigns the
identity on create.

Create action hooks and permission predicates are code:

	config.Actions = backend.CreateHookFunc(func(ctx context.Context, payload core.Record) (backend.ActionResult, error) {
		...
	})
	config.Permissions[core.OperateDelete] = backend.PredicatePermission(predicate)

Routes

For an entity "user" the backend creates the following routes:

	GET /admin/user_list?page=1
	GET /admin/user?type=create
	POST /admin/user
	POST /admin/user/upload
	GET /admin/user/{id}
	PATCH /admin/user/{id}
	DELETE /admin/user/{id}

The list returns {"data": [...], "page": n} where page is the total number of pages. The
head route describes fields, enums and configuration for client side rendering.

Furthermore the backend serves

	POST /admin/_login
	GET /admin/_dashboard
	GET /admin/_credentials
	GET /version
	GET /ping
	GET /metrics

Permissions

Permissions are configured per operate: read (list, read, head), write (create, update,
upload) and delete. A denied request is answered with http.StatusUnauthorized.
*/
package backend
