package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "ledgerly/internal/errors"
	"ledgerly/internal/models"
	"ledgerly/internal/pagination"
)

// categoryService maintains the category forest: parent/child links, cycle
// prevention, and type consistency along the parent chain.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// getVisibleCategory loads a category the user may reference: their own or a
// system category.
func (s *categoryService) getVisibleCategory(userID, categoryID uint) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ? AND (user_id = ? OR is_system = ?)", categoryID, userID, true).
		First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// wouldCycle walks the parent chain upward from candidateParent and reports
// whether categoryID appears on it. The walk is bounded by the chain length;
// a well-formed forest terminates at a root.
func (s *categoryService) wouldCycle(userID, categoryID, candidateParent uint) (bool, error) {
	current := candidateParent
	for current != 0 {
		if current == categoryID {
			return true, nil
		}
		parent, err := s.getVisibleCategory(userID, current)
		if err != nil {
			return false, err
		}
		if parent.ParentID == nil {
			return false, nil
		}
		current = *parent.ParentID
	}
	return false, nil
}

// CreateCategory creates a new category, validating the parent link.
func (s *categoryService) CreateCategory(
	userID uint,
	name string,
	categoryType models.CategoryType,
	icon string,
	color string,
	parentID *uint,
) (*models.Category, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	var count int64
	if err := s.db.Model(&models.Category{}).
		Where("user_id = ? AND name = ?", userID, name).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category with this name already exists")
	}

	if parentID != nil {
		parent, err := s.getVisibleCategory(userID, *parentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrCategoryNotFound) {
				return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
			}
			return nil, err
		}
		if parent.Type != categoryType {
			return nil, apperrors.ErrCategoryTypeMismatch
		}
	}

	category := &models.Category{
		UserID:   userID,
		Name:     name,
		Type:     categoryType,
		Icon:     icon,
		Color:    color,
		ParentID: parentID,
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

// GetUserCategories retrieves a paginated list of categories visible to the
// user, system categories included.
func (s *categoryService) GetUserCategories(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	base := s.db.Model(&models.Category{}).Where("user_id = ? OR is_system = ?", userID, true)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetUserCategoriesByType retrieves a paginated list of categories of a specific type.
func (s *categoryService) GetUserCategoriesByType(userID uint, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	base := s.db.Model(&models.Category{}).
		Where("(user_id = ? OR is_system = ?) AND type = ?", userID, true, categoryType)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCategoryByID retrieves a category by ID for a specific user.
func (s *categoryService) GetCategoryByID(userID, categoryID uint) (*models.Category, error) {
	return s.getVisibleCategory(userID, categoryID)
}

// GetCategorySubtree returns the category and all its descendants as a tree.
func (s *categoryService) GetCategorySubtree(userID, categoryID uint) (*CategoryNode, error) {
	root, err := s.getVisibleCategory(userID, categoryID)
	if err != nil {
		return nil, err
	}

	// Load every category visible to the user once and link in memory
	// instead of issuing one query per level.
	var all []models.Category
	if err := s.db.Where("user_id = ? OR is_system = ?", userID, true).Find(&all).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	children := make(map[uint][]models.Category)
	for _, c := range all {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}

	var build func(c models.Category) *CategoryNode
	build = func(c models.Category) *CategoryNode {
		node := &CategoryNode{Category: c}
		for _, child := range children[c.ID] {
			node.Nodes = append(node.Nodes, build(child))
		}
		return node
	}

	return build(*root), nil
}

// SubtreeIDs returns the IDs of a category and all its descendants. Budget
// evaluation uses this to roll child spend up into a parent's budget.
func (s *categoryService) SubtreeIDs(userID, categoryID uint) ([]uint, error) {
	node, err := s.GetCategorySubtree(userID, categoryID)
	if err != nil {
		return nil, err
	}

	var ids []uint
	var walk func(n *CategoryNode)
	walk = func(n *CategoryNode) {
		ids = append(ids, n.ID)
		for _, child := range n.Nodes {
			walk(child)
		}
	}
	walk(node)
	return ids, nil
}

// UpdateCategory updates a category, including moves to a new parent. Moves
// run the same cycle and type checks as create; system categories cannot be
// reparented.
func (s *categoryService) UpdateCategory(userID, categoryID uint, fields CategoryUpdateFields) (*models.Category, error) {
	category, err := s.getVisibleCategory(userID, categoryID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil && *fields.Name != "" {
		updates["name"] = *fields.Name
	}
	if fields.Icon != nil {
		updates["icon"] = *fields.Icon
	}
	if fields.Color != nil {
		updates["color"] = *fields.Color
	}

	if fields.ParentID != nil {
		if category.IsSystem {
			return nil, apperrors.ErrSystemCategory
		}
		newParent := *fields.ParentID
		if newParent != nil {
			if *newParent == categoryID {
				return nil, apperrors.ErrCategoryCycle
			}
			parent, err := s.getVisibleCategory(userID, *newParent)
			if err != nil {
				if errors.Is(err, apperrors.ErrCategoryNotFound) {
					return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
				}
				return nil, err
			}
			if parent.Type != category.Type {
				return nil, apperrors.ErrCategoryTypeMismatch
			}
			cycle, err := s.wouldCycle(userID, categoryID, *newParent)
			if err != nil {
				return nil, err
			}
			if cycle {
				return nil, apperrors.ErrCategoryCycle
			}
		}
		updates["parent_id"] = newParent
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.db.Where("id = ?", categoryID).First(category).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return category, nil
}

// DeleteCategory soft-deletes a category. Deletion is refused while the
// category has children or is referenced by any non-deleted transaction or
// budget; system categories are never deletable.
func (s *categoryService) DeleteCategory(userID, categoryID uint) error {
	category, err := s.getVisibleCategory(userID, categoryID)
	if err != nil {
		return err
	}

	if category.IsSystem {
		return apperrors.ErrSystemCategory
	}

	var childCount int64
	if err := s.db.Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&childCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if childCount > 0 {
		return apperrors.ErrCategoryHasChildren
	}

	var txnCount int64
	if err := s.db.Model(&models.Transaction{}).Where("category_id = ?", categoryID).Count(&txnCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if txnCount > 0 {
		return apperrors.ErrCategoryInUse
	}

	var budgetCount int64
	if err := s.db.Model(&models.Budget{}).Where("category_id = ?", categoryID).Count(&budgetCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if budgetCount > 0 {
		return apperrors.ErrCategoryInUse
	}

	if err := s.db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
