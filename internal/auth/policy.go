package auth

type Resource string

const (
	ResourceProduct    Resource = "product"
	ResourceCollection Resource = "collection"
	ResourceReview     Resource = "review"
	ResourceCart       Resource = "cart"
	ResourceCustomer   Resource = "customer"
	ResourceProfile    Resource = "profile"
	ResourceHistory    Resource = "history"
	ResourceOrder      Resource = "order"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type rule func(id *Identity) error

func allowAny(*Identity) error { return nil }

func requireAuthenticated(id *Identity) error {
	if !id.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

func requireStaff(id *Identity) error {
	if err := requireAuthenticated(id); err != nil {
		return err
	}
	if !id.Staff {
		return ErrForbidden
	}
	return nil
}

func requirePermission(perm string) rule {
	return func(id *Identity) error {
		if err := requireAuthenticated(id); err != nil {
			return err
		}
		if !id.HasPermission(perm) {
			return ErrForbidden
		}
		return nil
	}
}

var readOnlyUnlessStaff = map[Action]rule{
	ActionRead:   allowAny,
	ActionCreate: requireStaff,
	ActionUpdate: requireStaff,
	ActionDelete: requireStaff,
}

var policy = map[Resource]map[Action]rule{
	ResourceProduct:    readOnlyUnlessStaff,
	ResourceCollection: readOnlyUnlessStaff,
	ResourceReview: {
		ActionRead:   allowAny,
		ActionCreate: allowAny,
		ActionUpdate: allowAny,
		ActionDelete: allowAny,
	},
	ResourceCart: {
		ActionRead:   allowAny,
		ActionCreate: allowAny,
		ActionUpdate: allowAny,
		ActionDelete: allowAny,
	},
	ResourceCustomer: {
		ActionRead:   requireStaff,
		ActionUpdate: requireStaff,
	},
	ResourceProfile: {
		ActionRead:   requireAuthenticated,
		ActionUpdate: requireAuthenticated,
	},
	ResourceHistory: {
		ActionRead: requirePermission(PermissionViewHistory),
	},
	ResourceOrder: {
		ActionRead:   requireAuthenticated,
		ActionCreate: requireAuthenticated,
		ActionUpdate: requireStaff,
		ActionDelete: requireStaff,
	},
}

// Allow reports whether id may perform action on resource. Unknown
// resource/action pairs are denied.
func Allow(id *Identity, resource Resource, action Action) error {
	r, ok := policy[resource][action]
	if !ok {
		return ErrForbidden
	}
	return r(id)
}
